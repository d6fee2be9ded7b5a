package hook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"log/slog"
	"strings"
	"sync"
)

// Algorithm names the HMAC digest used by a signature header.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

var (
	// ErrSecretMissing means a signature arrived but no secret is configured.
	// It is a server-side fault.
	ErrSecretMissing = errors.New("webhook secret is not configured")
	// ErrSignatureParse means the header is not "<algo>=<hex>".
	ErrSignatureParse = errors.New("malformed signature header")
	// ErrSignatureMismatch means the digest does not match the body.
	ErrSignatureMismatch = errors.New("signature does not match payload")
	// ErrSignatureRequired means a secret is configured but the delivery is unsigned.
	ErrSignatureRequired = errors.New("signature header is required")
)

func (a Algorithm) newHash() (func() hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New, nil
	case SHA256:
		return sha256.New, nil
	}
	return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrSignatureParse, string(a))
}

// Sign returns the header value GitHub would send for body.
func Sign(secret []byte, alg Algorithm, body []byte) string {
	newHash, err := alg.newHash()
	if err != nil {
		return ""
	}
	mac := hmac.New(newHash, secret)
	mac.Write(body)
	return string(alg) + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against the HMAC of the raw body. The digest
// comparison is constant time; a digest of the wrong length is a mismatch.
func Verify(secret []byte, alg Algorithm, body []byte, header string) error {
	if len(secret) == 0 {
		return ErrSecretMissing
	}
	newHash, err := alg.newHash()
	if err != nil {
		return err
	}

	prefix := string(alg) + "="
	digest, ok := strings.CutPrefix(header, prefix)
	if !ok {
		return fmt.Errorf("%w: expected %q prefix", ErrSignatureParse, prefix)
	}
	received, err := hex.DecodeString(digest)
	if err != nil || len(received) == 0 {
		return fmt.Errorf("%w: digest is not hex", ErrSignatureParse)
	}

	mac := hmac.New(newHash, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), received) {
		return ErrSignatureMismatch
	}
	return nil
}

// Verifier applies the header selection policy with an injected secret.
type Verifier struct {
	secret []byte
	logger *slog.Logger
	warn   sync.Once
}

// NewVerifier returns a Verifier for secret. An empty secret disables
// verification of unsigned deliveries.
func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{secret: []byte(secret), logger: logger}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Check verifies a delivery's signature headers. sha256 wins when both are
// present. With neither header, the delivery passes only when no secret is
// configured.
func (v *Verifier) Check(sha1Header, sha256Header string, body []byte) error {
	switch {
	case sha256Header != "":
		return Verify(v.secret, SHA256, body, sha256Header)
	case sha1Header != "":
		return Verify(v.secret, SHA1, body, sha1Header)
	case v.Enabled():
		return ErrSignatureRequired
	}
	v.warn.Do(func() {
		v.logger.Warn("signature verification disabled: no secret configured and delivery is unsigned")
	})
	return nil
}
