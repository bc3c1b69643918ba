package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

type feedbackRequest struct {
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

// HandleFeedback stores a rating of the support experience. A missing rating counts as
// models.DefaultRating; the author is stamped from the session.
func (m Main) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fb := models.Feedback{
		UserID:    user.ID,
		Name:      user.DisplayName(),
		Rating:    models.DefaultRating,
		Comment:   req.Comment,
		Timestamp: time.Now(),
	}
	if req.Rating != nil {
		fb.Rating = *req.Rating
	}
	if err := fb.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := m.store.AddFeedback(r.Context(), fb)
	if err != nil {
		m.logger.Error("Failed to add feedback", slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save feedback")
		return
	}

	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}
