package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/MegaGrindStone/support-chat/internal/services"
)

type failingLister struct{}

func (failingLister) Feedbacks(context.Context) ([]models.Feedback, error) {
	return nil, errors.New("store closed")
}

func TestExportFeedback(t *testing.T) {
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, fb := range []models.Feedback{
		{UserID: "u2", Name: "Grace", Rating: 2, Comment: "Slow answers", Timestamp: base.Add(time.Hour)},
		{UserID: "u1", Name: "Ada", Rating: 5, Comment: "Great help", Timestamp: base},
	} {
		if _, err := db.AddFeedback(ctx, fb); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := exportFeedback(ctx, db, &buf); err != nil {
		t.Fatalf("exportFeedback() error = %v", err)
	}

	var got []models.Feedback
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var fb models.Feedback
		if err := json.Unmarshal(scanner.Bytes(), &fb); err != nil {
			t.Fatalf("line %q is not a feedback record: %v", scanner.Text(), err)
		}
		got = append(got, fb)
	}

	if len(got) != 2 {
		t.Fatalf("exported %d records, want 2", len(got))
	}
	if got[0].Name != "Ada" || got[1].Name != "Grace" {
		t.Errorf("exported order = %q, %q, want oldest first", got[0].Name, got[1].Name)
	}
	if got[0].ID == "" || got[0].Rating != 5 || got[0].Comment != "Great help" {
		t.Errorf("first record = %+v", got[0])
	}
}

func TestExportFeedbackStoreError(t *testing.T) {
	var buf bytes.Buffer
	if err := exportFeedback(context.Background(), failingLister{}, &buf); err == nil {
		t.Error("exportFeedback() should fail when the store fails")
	}
	if buf.Len() != 0 {
		t.Errorf("output = %q, want nothing", buf.String())
	}
}
