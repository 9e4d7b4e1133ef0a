package services

import (
	"crypto/sha256"
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var verifierPattern = regexp.MustCompile(`^[A-Za-z0-9\-._~]{43,128}$`)

func TestGeneratePKCE(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p := GeneratePKCE()

		assert.Regexp(t, verifierPattern, p.Verifier)
		assert.NotContains(t, p.Challenge, "=")
		assert.Equal(t, CodeChallenge(p.Verifier), p.Challenge)
		assert.False(t, seen[p.Verifier], "verifier repeated")
		seen[p.Verifier] = true
	}
}

func TestCodeChallenge_MatchesSHA256(t *testing.T) {
	// RFC 7636 appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", CodeChallenge(verifier))

	sum := sha256.Sum256([]byte("another-verifier"))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), CodeChallenge("another-verifier"))
}
