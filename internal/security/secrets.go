package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

const (
	// MinSecretLength is the shortest webhook secret accepted by shook init.
	MinSecretLength = 32

	// MinEntropy is the Shannon entropy (bits per character) a secret must reach.
	MinEntropy = 3.5

	// generatedSecretBytes encodes to a 64 character hex string.
	generatedSecretBytes = 32
)

var placeholderSecrets = []string{
	"replace",
	"changeme",
	"topsecret",
	"password",
	"mysecret",
	"github-webhook",
}

// ValidateSecret rejects short, placeholder or low-entropy webhook secrets.
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("secret too short (minimum %d characters, got %d)", MinSecretLength, len(secret))
	}

	lower := strings.ToLower(secret)
	for _, p := range placeholderSecrets {
		if strings.Contains(lower, p) {
			return fmt.Errorf("secret appears to be a placeholder value")
		}
	}

	if e := calculateEntropy(secret); e < MinEntropy {
		return fmt.Errorf("secret has insufficient entropy (%.2f < %.2f) - use a more random secret", e, MinEntropy)
	}
	return nil
}

// GenerateSecret returns a random hex secret suitable for a GitHub webhook.
func GenerateSecret() (string, error) {
	buf := make([]byte, generatedSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// calculateEntropy computes the Shannon entropy of a string.
func calculateEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, c := range s {
		freq[c]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// IsWeakSecret is a softer check used for startup warnings: the server
// still runs with a weak secret.
func IsWeakSecret(secret string) bool {
	if len(secret) < 16 {
		return true
	}
	if len(strings.Trim(secret, secret[:1])) == 0 {
		return true
	}
	if isSequential(secret) {
		return true
	}
	return calculateEntropy(secret) < 2.5
}

// isSequential reports whether most neighbouring bytes differ by one.
func isSequential(s string) bool {
	if len(s) < 4 {
		return false
	}

	sequential := 0
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1]+1 || s[i] == s[i-1]-1 {
			sequential++
		}
	}
	return float64(sequential) > float64(len(s))*0.7
}
