package services

import "golang.org/x/oauth2"

// PKCE holds a code verifier and its S256 challenge.
type PKCE struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE creates a fresh verifier (43 URL-safe characters) and its challenge.
func GeneratePKCE() *PKCE {
	verifier := oauth2.GenerateVerifier()
	return &PKCE{
		Verifier:  verifier,
		Challenge: CodeChallenge(verifier),
	}
}

// CodeChallenge derives base64url(sha256(verifier)) without padding.
func CodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
