package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the Store interface using a BoltDB backend. Conversations, feedback and users live in
// their own buckets; the messages of a conversation live in a bucket named after it, so deleting a
// conversation drops its messages at once.
type BoltDB struct {
	db *bolt.DB
}

var (
	conversationsBucket = []byte("conversations")
	feedbackBucket      = []byte("feedback")
	usersBucket         = []byte("users")
	userEmailsBucket    = []byte("user-emails")
)

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{conversationsBucket, feedbackBucket, usersBucket, userEmailsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return BoltDB{}, err
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func messageBucketName(conversationID string) []byte {
	return []byte(fmt.Sprintf("conversation-%s", conversationID))
}

// Conversations returns the conversations owned by ownerID, most recent activity first.
func (b BoltDB) Conversations(_ context.Context, ownerID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).ForEach(func(_, v []byte) error {
			var conv models.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				return fmt.Errorf("failed to unmarshal conversation: %w", err)
			}
			if conv.OwnerID == ownerID {
				convs = append(convs, conv)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortConversations(convs)
	return convs, nil
}

// Conversation returns a single conversation, or models.ErrNotFound.
func (b BoltDB) Conversation(_ context.Context, id string) (models.Conversation, error) {
	var conv models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(conversationsBucket), id, &conv)
	})
	return conv, err
}

// AddConversation stores a new conversation and creates its message bucket. The stored ID is built from
// a sequence number and a random suffix.
func (b BoltDB) AddConversation(_ context.Context, conv models.Conversation) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(conversationsBucket)

		idPrefix, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%d-%s", idPrefix, uuid.New().String())
		conv.ID = newID

		if _, err := tx.CreateBucketIfNotExists(messageBucketName(conv.ID)); err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		return putJSON(bucket, newID, conv)
	})

	return newID, err
}

// UpdateTitle sets the title of the conversation and leaves its summary as it is. Missing conversations
// yield models.ErrNotFound.
func (b BoltDB) UpdateTitle(_ context.Context, id, title string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(conversationsBucket)
		var conv models.Conversation
		if err := getJSON(bucket, id, &conv); err != nil {
			return err
		}
		conv.Title = title
		return putJSON(bucket, id, conv)
	})
}

// DeleteConversation removes the conversation and all of its messages.
func (b BoltDB) DeleteConversation(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(conversationsBucket)
		if bucket.Get([]byte(id)) == nil {
			return models.ErrNotFound
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		if err := tx.DeleteBucket(messageBucketName(id)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to delete message bucket: %w", err)
		}
		return nil
	})
}

// Messages retrieves all messages of the conversation in the order they were added.
func (b BoltDB) Messages(_ context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(messageBucketName(conversationID))
		if bucket == nil {
			return models.ErrNotFound
		}

		return bucket.ForEach(func(_, v []byte) error {
			var message models.Message
			if err := json.Unmarshal(v, &message); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AddMessage stores message in the conversation and refreshes the conversation summary in the same
// transaction. Message keys are zero padded so the bucket iterates in insertion order.
func (b BoltDB) AddMessage(_ context.Context, conversationID string, message models.Message) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		convs := tx.Bucket(conversationsBucket)
		var conv models.Conversation
		if err := getJSON(convs, conversationID, &conv); err != nil {
			return err
		}

		bucket := tx.Bucket(messageBucketName(conversationID))
		if bucket == nil {
			return models.ErrNotFound
		}

		idPrefix, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%010d-%s", idPrefix, uuid.New().String())
		message.ID = newID

		if err := putJSON(bucket, newID, message); err != nil {
			return err
		}

		conv.Touch(message)
		return putJSON(convs, conv.ID, conv)
	})

	return newID, err
}

// AddFeedback stores a feedback record.
func (b BoltDB) AddFeedback(_ context.Context, feedback models.Feedback) (string, error) {
	feedback.ID = uuid.New().String()
	err := b.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(feedbackBucket), feedback.ID, feedback)
	})
	return feedback.ID, err
}

// Feedbacks returns all stored feedback, oldest first.
func (b BoltDB) Feedbacks(context.Context) ([]models.Feedback, error) {
	var feedbacks []models.Feedback
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(feedbackBucket).ForEach(func(_, v []byte) error {
			var f models.Feedback
			if err := json.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("failed to unmarshal feedback: %w", err)
			}
			feedbacks = append(feedbacks, f)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(feedbacks, func(a, b models.Feedback) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return feedbacks, nil
}

// AddUser stores a new user. Emails are unique ignoring case; a taken email yields models.ErrConflict.
func (b BoltDB) AddUser(_ context.Context, user models.User) (string, error) {
	user.ID = uuid.New().String()
	user.Email = strings.ToLower(user.Email)
	email := []byte(user.Email)
	err := b.db.Update(func(tx *bolt.Tx) error {
		emails := tx.Bucket(userEmailsBucket)
		if emails.Get(email) != nil {
			return models.ErrConflict
		}
		if err := emails.Put(email, []byte(user.ID)); err != nil {
			return fmt.Errorf("failed to index user email: %w", err)
		}
		return putJSON(tx.Bucket(usersBucket), user.ID, user)
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// User returns the user with the given id, or models.ErrNotFound.
func (b BoltDB) User(_ context.Context, id string) (models.User, error) {
	var user models.User
	err := b.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(usersBucket), id, &user)
	})
	return user, err
}

// UserByEmail looks a user up by email, ignoring case.
func (b BoltDB) UserByEmail(_ context.Context, email string) (models.User, error) {
	var user models.User
	err := b.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(userEmailsBucket).Get([]byte(strings.ToLower(email)))
		if id == nil {
			return models.ErrNotFound
		}
		return getJSON(tx.Bucket(usersBucket), string(id), &user)
	})
	return user, err
}

func getJSON(bucket *bolt.Bucket, key string, v any) error {
	raw := bucket.Get([]byte(key))
	if raw == nil {
		return models.ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func putJSON(bucket *bolt.Bucket, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return bucket.Put([]byte(key), raw)
}

func sortConversations(convs []models.Conversation) {
	slices.SortStableFunc(convs, func(a, b models.Conversation) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
