package services

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven/mocks"
)

func TestAuthService_ValidateToken(t *testing.T) {
	adapter := mocks.NewMockAuthAdapter()
	svc := NewAuthService(adapter)

	valid, _ := adapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-123",
		Email:     "test@example.com",
		SessionID: "sess-1",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	expired, _ := adapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-123",
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	})
	noSubject, _ := adapter.GenerateToken(&domain.TokenClaims{
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid token", valid, nil},
		{"empty token", "", domain.ErrTokenInvalid},
		{"garbage token", "not-a-token", domain.ErrTokenInvalid},
		{"expired token", expired, domain.ErrTokenExpired},
		{"missing user", noSubject, domain.ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authCtx, err := svc.ValidateToken(context.Background(), tt.token)
			if err != tt.wantErr {
				t.Fatalf("ValidateToken() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if authCtx.UserID != "user-123" {
					t.Errorf("UserID = %q, want user-123", authCtx.UserID)
				}
				if authCtx.SessionID != "sess-1" {
					t.Errorf("SessionID = %q, want sess-1", authCtx.SessionID)
				}
			}
		})
	}
}
