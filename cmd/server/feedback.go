package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

type feedbackLister interface {
	Feedbacks(ctx context.Context) ([]models.Feedback, error)
}

// exportFeedback writes the stored feedback to w as one JSON object per line, oldest first.
func exportFeedback(ctx context.Context, st feedbackLister, w io.Writer) error {
	feedbacks, err := st.Feedbacks(ctx)
	if err != nil {
		return fmt.Errorf("error listing feedback: %w", err)
	}

	enc := json.NewEncoder(w)
	for _, f := range feedbacks {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("error writing feedback: %w", err)
		}
	}
	return nil
}
