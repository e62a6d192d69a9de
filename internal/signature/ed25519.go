package signature

import (
	"crypto/ed25519"
	"encoding/hex"
)

// Header names carrying the detached signature and its timestamp.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Verify reports whether signatureHex is a valid Ed25519 signature by key over
// timestamp||body. It never panics; malformed input simply fails.
func Verify(body []byte, signatureHex, timestamp string, key ed25519.PublicKey) bool {
	if signatureHex == "" || timestamp == "" {
		return false
	}
	if len(key) != ed25519.PublicKeySize {
		return false
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(key, signedMessage(timestamp, body), sig)
}

// Sign produces the hex signature the platform would send for body at
// timestamp. Used by local tooling and tests.
func Sign(key ed25519.PrivateKey, timestamp string, body []byte) string {
	return hex.EncodeToString(ed25519.Sign(key, signedMessage(timestamp, body)))
}

func signedMessage(timestamp string, body []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	return append(msg, body...)
}
