package push

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// DispatchSecretHeader carries the shared secret on dispatch and sweep invocations.
const DispatchSecretHeader = "X-Dispatch-Secret"

var (
	// ErrMissingSecret indicates the verifier was built without a secret.
	ErrMissingSecret = errors.New("push: dispatch secret is required")
	// ErrUnauthorized indicates the presented secret is absent or wrong.
	ErrUnauthorized = errors.New("push: unauthorized invocation")
)

// SecretVerifier authenticates privileged invocations with a shared secret.
type SecretVerifier struct {
	secret []byte
}

func NewSecretVerifier(secret string) (*SecretVerifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, ErrMissingSecret
	}
	return &SecretVerifier{secret: []byte(trimmed)}, nil
}

// Verify compares the presented value in constant time.
func (v *SecretVerifier) Verify(presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(presented), v.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Secret returns the configured secret for outbound invocations.
func (v *SecretVerifier) Secret() string {
	return string(v.secret)
}
