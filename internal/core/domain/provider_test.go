package domain

import (
	"testing"
)

func TestProviderTypeConstants(t *testing.T) {
	tests := []struct {
		provider ProviderType
		expected string
	}{
		{ProviderTypeGoogle, "google"},
		{ProviderTypeFacebook, "facebook"},
		{ProviderTypeLinkedIn, "linkedin"},
		{ProviderTypeTikTok, "tiktok"},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			if string(tt.provider) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, string(tt.provider))
			}
		})
	}
}

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderType
		wantErr bool
	}{
		{"google", ProviderTypeGoogle, false},
		{" LinkedIn ", ProviderTypeLinkedIn, false},
		{"tiktok", ProviderTypeTikTok, false},
		{"facebook", ProviderTypeFacebook, false},
		{"github", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProviderType(tt.in)
			if tt.wantErr {
				if err != ErrUnsupportedProvider {
					t.Errorf("expected ErrUnsupportedProvider, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestProviderDescriptor_IsConfigured(t *testing.T) {
	full := &ProviderDescriptor{ClientID: "id", ClientSecret: "secret", RedirectURI: "https://app/cb"}
	if !full.IsConfigured() {
		t.Error("expected descriptor with credentials to be configured")
	}

	noSecret := &ProviderDescriptor{ClientID: "id", RedirectURI: "https://app/cb"}
	if noSecret.IsConfigured() {
		t.Error("expected descriptor without secret to be unconfigured")
	}

	var missing *ProviderDescriptor
	if missing.IsConfigured() {
		t.Error("expected nil descriptor to be unconfigured")
	}
}

func TestProviderDescriptor_JoinedScopes(t *testing.T) {
	d := &ProviderDescriptor{Scopes: []string{"r_ads", "rw_ads"}}
	if got := d.JoinedScopes(); got != "r_ads rw_ads" {
		t.Errorf("expected space-joined scopes, got %q", got)
	}

	d.ScopeSeparator = ","
	if got := d.JoinedScopes(); got != "r_ads,rw_ads" {
		t.Errorf("expected comma-joined scopes, got %q", got)
	}
}
