package signature

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	ErrMissingSignature = errors.New("signature headers are required")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidTimestamp = errors.New("invalid signature timestamp")
	ErrTimestampExpired = errors.New("signature timestamp outside allowed skew")
)

// Verifier checks request headers against a fixed public key.
// It is immutable after construction and safe for concurrent use.
type Verifier struct {
	key     ed25519.PublicKey
	maxSkew time.Duration
}

// NewVerifier copies key and returns a Verifier. A maxSkew of zero disables
// the timestamp freshness check.
func NewVerifier(key ed25519.PublicKey, maxSkew time.Duration) (*Verifier, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: %d", len(key))
	}
	if maxSkew < 0 {
		return nil, fmt.Errorf("max timestamp skew must not be negative")
	}

	k := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(k, key)
	return &Verifier{key: k, maxSkew: maxSkew}, nil
}

// Check authenticates body using the signature headers in h.
// The returned errors are for logging; clients should only ever see a 401.
func (v *Verifier) Check(h http.Header, body []byte, now time.Time) error {
	sig := h.Get(HeaderSignature)
	ts := h.Get(HeaderTimestamp)
	if sig == "" || ts == "" {
		return ErrMissingSignature
	}

	if !Verify(body, sig, ts, v.key) {
		return ErrInvalidSignature
	}

	if v.maxSkew > 0 {
		secs, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return ErrInvalidTimestamp
		}
		skew := now.Sub(time.Unix(secs, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxSkew {
			return ErrTimestampExpired
		}
	}

	return nil
}
