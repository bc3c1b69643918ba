package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLStore implements the Store interface on a relational database through GORM. SQLite and MySQL are
// supported.
type SQLStore struct {
	db *gorm.DB
}

type conversationRow struct {
	ID          string    `gorm:"type:varchar(64);primaryKey"`
	OwnerID     string    `gorm:"type:varchar(64);index;not null"`
	Title       string    `gorm:"type:varchar(128)"`
	LastMessage string    `gorm:"type:varchar(128)"`
	Timestamp   time.Time `gorm:"index"`
	CreatedAt   time.Time
}

func (conversationRow) TableName() string { return "conversations" }

type messageRow struct {
	Seq            uint64    `gorm:"primaryKey;autoIncrement"`
	ID             string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	ConversationID string    `gorm:"type:varchar(64);index;not null"`
	Text           string    `gorm:"type:text;not null"`
	Sender         string    `gorm:"type:varchar(16);not null"`
	Timestamp      time.Time `gorm:"not null"`
}

func (messageRow) TableName() string { return "messages" }

type feedbackRow struct {
	ID        string `gorm:"type:varchar(64);primaryKey"`
	UserID    string `gorm:"type:varchar(64);index"`
	Name      string `gorm:"type:varchar(128)"`
	Rating    int    `gorm:"not null"`
	Comment   string `gorm:"type:text"`
	Timestamp time.Time
}

func (feedbackRow) TableName() string { return "feedback" }

type userRow struct {
	ID           string `gorm:"type:varchar(64);primaryKey"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string `gorm:"type:varchar(128)"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

// NewSQLStore opens the database with the given driver ("sqlite" or "mysql") and migrates the schema.
// For sqlite the dsn is a file path or "file::memory:?cache=shared".
func NewSQLStore(driver, dsn string) (SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return SQLStore{}, fmt.Errorf("unknown sql driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return SQLStore{}, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if err := db.AutoMigrate(&conversationRow{}, &messageRow{}, &feedbackRow{}, &userRow{}); err != nil {
		return SQLStore{}, fmt.Errorf("failed to migrate database: %w", err)
	}

	return SQLStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Conversations returns the conversations owned by ownerID, most recent activity first.
func (s SQLStore) Conversations(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	var rows []conversationRow
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("timestamp DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	convs := make([]models.Conversation, len(rows))
	for i, row := range rows {
		convs[i] = row.model()
	}
	return convs, nil
}

// Conversation returns a single conversation, or models.ErrNotFound.
func (s SQLStore) Conversation(ctx context.Context, id string) (models.Conversation, error) {
	var row conversationRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return models.Conversation{}, translateSQLError(err)
	}
	return row.model(), nil
}

// AddConversation stores a new conversation under a fresh id.
func (s SQLStore) AddConversation(ctx context.Context, conv models.Conversation) (string, error) {
	conv.ID = uuid.New().String()
	row := newConversationRow(conv)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv.ID, nil
}

// UpdateTitle sets the title of the conversation and leaves its summary as it is. Missing conversations
// yield models.ErrNotFound.
func (s SQLStore) UpdateTitle(ctx context.Context, id, title string) error {
	res := s.db.WithContext(ctx).
		Model(&conversationRow{}).
		Where("id = ?", id).
		Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("failed to update conversation title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and all of its messages.
func (s SQLStore) DeleteConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&conversationRow{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return models.ErrNotFound
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&messageRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		return nil
	})
}

// Messages retrieves all messages of the conversation in the order they were added.
func (s SQLStore) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := s.Conversation(ctx, conversationID); err != nil {
		return nil, err
	}

	var rows []messageRow
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]models.Message, len(rows))
	for i, row := range rows {
		messages[i] = models.Message{
			ID:        row.ID,
			Text:      row.Text,
			Sender:    models.Sender(row.Sender),
			Timestamp: row.Timestamp,
		}
	}
	return messages, nil
}

// AddMessage stores message in the conversation and refreshes the conversation summary in the same
// transaction.
func (s SQLStore) AddMessage(ctx context.Context, conversationID string, message models.Message) (string, error) {
	message.ID = uuid.New().String()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv conversationRow
		if err := tx.First(&conv, "id = ?", conversationID).Error; err != nil {
			return translateSQLError(err)
		}

		row := messageRow{
			ID:             message.ID,
			ConversationID: conversationID,
			Text:           message.Text,
			Sender:         string(message.Sender),
			Timestamp:      message.Timestamp,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		summary := conv.model()
		summary.Touch(message)
		changes := map[string]any{
			"last_message": summary.LastMessage,
			"timestamp":    summary.Timestamp,
		}
		if conv.Title == "" {
			changes["title"] = summary.Title
		}
		return tx.Model(&conversationRow{}).Where("id = ?", conversationID).Updates(changes).Error
	})
	if err != nil {
		return "", err
	}
	return message.ID, nil
}

// AddFeedback stores a feedback record.
func (s SQLStore) AddFeedback(ctx context.Context, feedback models.Feedback) (string, error) {
	row := feedbackRow{
		ID:        uuid.New().String(),
		UserID:    feedback.UserID,
		Name:      feedback.Name,
		Rating:    feedback.Rating,
		Comment:   feedback.Comment,
		Timestamp: feedback.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to create feedback: %w", err)
	}
	return row.ID, nil
}

// Feedbacks returns all stored feedback, oldest first.
func (s SQLStore) Feedbacks(ctx context.Context) ([]models.Feedback, error) {
	var rows []feedbackRow
	if err := s.db.WithContext(ctx).Order("timestamp ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}

	feedbacks := make([]models.Feedback, len(rows))
	for i, row := range rows {
		feedbacks[i] = models.Feedback{
			ID:        row.ID,
			UserID:    row.UserID,
			Name:      row.Name,
			Rating:    row.Rating,
			Comment:   row.Comment,
			Timestamp: row.Timestamp,
		}
	}
	return feedbacks, nil
}

// AddUser stores a new user. A taken email yields models.ErrConflict.
func (s SQLStore) AddUser(ctx context.Context, user models.User) (string, error) {
	row := userRow{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(user.Email),
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", models.ErrConflict
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return row.ID, nil
}

// User returns the user with the given id, or models.ErrNotFound.
func (s SQLStore) User(ctx context.Context, id string) (models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return models.User{}, translateSQLError(err)
	}
	return row.model(), nil
}

// UserByEmail looks a user up by email, ignoring case.
func (s SQLStore) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "email = ?", strings.ToLower(email)).Error; err != nil {
		return models.User{}, translateSQLError(err)
	}
	return row.model(), nil
}

func newConversationRow(c models.Conversation) conversationRow {
	return conversationRow{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Title:       c.Title,
		LastMessage: c.LastMessage,
		Timestamp:   c.Timestamp,
		CreatedAt:   c.CreatedAt,
	}
}

func (r conversationRow) model() models.Conversation {
	return models.Conversation{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		LastMessage: r.LastMessage,
		Timestamp:   r.Timestamp,
		CreatedAt:   r.CreatedAt,
	}
}

func (r userRow) model() models.User {
	return models.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

func translateSQLError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}
