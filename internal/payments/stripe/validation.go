package stripe

import (
	"errors"
	"strings"
)

const (
	secretKeyPrefix      = "sk_"
	restrictedKeyPrefix  = "rk_"
	publishableKeyPrefix = "pk_"
)

// KeyMode tells whether a key talks to live or test data.
type KeyMode string

const (
	KeyModeUnknown KeyMode = ""
	KeyModeTest    KeyMode = "test"
	KeyModeLive    KeyMode = "live"
)

var (
	ErrPublishableKey = errors.New("stripe: publishable key supplied where a secret key is required")
	ErrMalformedKey   = errors.New("stripe: key does not look like a secret or restricted key")
)

// IsSecretKey reports whether the value looks like a Stripe secret or restricted key.
func IsSecretKey(value string) bool {
	v := strings.TrimSpace(value)
	return strings.HasPrefix(v, secretKeyPrefix) || strings.HasPrefix(v, restrictedKeyPrefix)
}

// IsPublishableKey reports whether the value looks like a Stripe publishable key.
func IsPublishableKey(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), publishableKeyPrefix)
}

// ModeOf extracts the environment segment from keys shaped like sk_test_... or rk_live_....
func ModeOf(value string) KeyMode {
	parts := strings.SplitN(strings.TrimSpace(value), "_", 3)
	if len(parts) < 3 {
		return KeyModeUnknown
	}
	switch KeyMode(parts[1]) {
	case KeyModeTest:
		return KeyModeTest
	case KeyModeLive:
		return KeyModeLive
	}
	return KeyModeUnknown
}

// CheckSecretKey explains what is wrong with a configured secret key. The result is advisory:
// callers log it and carry on, since the gateway has the final word.
func CheckSecretKey(value string) error {
	switch {
	case IsPublishableKey(value):
		return ErrPublishableKey
	case !IsSecretKey(value):
		return ErrMalformedKey
	}
	return nil
}
