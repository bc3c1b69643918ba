package models

import (
	"fmt"
	"time"
)

// User is an account allowed to sign in and chat.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Feedback is a rating left by a user about the support experience.
type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	// MinRating and MaxRating bound Feedback.Rating.
	MinRating = 0
	MaxRating = 5
	// DefaultRating is the rating preselected by the feedback form.
	DefaultRating = 3
)

// DisplayName returns the name shown for the user, falling back to "Anonymous".
func (u User) DisplayName() string {
	if u.Name == "" {
		return "Anonymous"
	}
	return u.Name
}

// Validate checks the rating bounds.
func (f Feedback) Validate() error {
	if f.Rating < MinRating || f.Rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d, got %d", MinRating, MaxRating, f.Rating)
	}
	return nil
}
