package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/services"
)

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	r := services.NewMemoryRevoker()

	if revoked, _ := r.Revoked(ctx, "token"); revoked {
		t.Error("Revoked() = true before Revoke")
	}

	if err := r.Revoke(ctx, "token", time.Hour); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if revoked, _ := r.Revoked(ctx, "token"); !revoked {
		t.Error("Revoked() = false after Revoke")
	}
	if revoked, _ := r.Revoked(ctx, "other"); revoked {
		t.Error("Revoked() = true for another token")
	}

	if err := r.Revoke(ctx, "expired", 0); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if revoked, _ := r.Revoked(ctx, "expired"); revoked {
		t.Error("Revoked() = true for a token revoked without lifetime")
	}
}
