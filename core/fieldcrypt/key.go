package fieldcrypt

import (
	"errors"
	"fmt"
	"strings"
)

const MinMasterKeyLength = 32

var (
	ErrMissingKey = errors.New("fieldcrypt: encryption key is required")
	ErrShortKey   = fmt.Errorf("fieldcrypt: encryption key must be at least %d characters", MinMasterKeyLength)
	ErrWeakKey    = errors.New("fieldcrypt: default encryption key is not allowed in production")
	ErrKeySpacing = errors.New("fieldcrypt: encryption key must not have leading or trailing whitespace")
)

// Keys that appear in sample env files and docs.
var weakKeys = map[string]struct{}{
	"your-32-character-secret-key-here":           {},
	"changeme-changeme-changeme-changeme":         {},
	"0123456789abcdef0123456789abcdef":            {},
	"reportdesk-dev-encryption-key-do-not-use":    {},
	"default-encryption-key-change-in-production": {},
}

func IsWeakKey(key string) bool {
	_, ok := weakKeys[key]
	return ok
}

// ValidateMasterKey checks the master key for the given environment. A weak key
// is an error outside dev and a warning in dev.
func ValidateMasterKey(key, appEnv string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrMissingKey
	}
	// The key feeds PBKDF2 and HKDF byte for byte.
	if strings.TrimSpace(key) != key {
		return "", ErrKeySpacing
	}
	if len(key) < MinMasterKeyLength {
		return "", ErrShortKey
	}
	if IsWeakKey(key) {
		if isDevEnv(appEnv) {
			return "using a well-known placeholder encryption key; set ENCRYPTION_KEY before deploying", nil
		}
		return "", ErrWeakKey
	}
	return "", nil
}

func isDevEnv(appEnv string) bool {
	switch strings.ToLower(strings.TrimSpace(appEnv)) {
	case "dev", "development", "test":
		return true
	default:
		return false
	}
}
