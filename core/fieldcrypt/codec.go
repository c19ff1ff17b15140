// Package fieldcrypt encrypts individual string columns at rest.
//
// Ciphertexts are colon-delimited hex: salt:iv:ciphertext:authTag. Each value gets
// its own salt and IV, and the AES-256-GCM key is derived per value from the
// master key with PBKDF2-SHA512. Values written before per-value salts existed
// use the three-part form iv:ciphertext:authTag and a fixed legacy salt.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"reportdesk/core/utils"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize         = 32
	IVSize           = 16
	TagSize          = 16
	KeySize          = 32
	PBKDF2Iterations = 100000

	associatedData = "reportdesk-field-v1"
	blindIndexInfo = "reportdesk-blind-index-v1"
)

var legacySalt = []byte("reportdesk-legacy-field-salt")

var errMalformed = errors.New("fieldcrypt: malformed ciphertext")

type Codec struct {
	masterKey []byte
	indexKey  []byte
	logger    *utils.Logger
}

// New validates the master key for appEnv and returns a codec. Weak keys in dev
// are accepted with a warning.
func New(masterKey, appEnv string, logger *utils.Logger) (*Codec, error) {
	warning, err := ValidateMasterKey(masterKey, appEnv)
	if err != nil {
		return nil, err
	}
	if warning != "" && logger != nil {
		logger.Warnf("fieldcrypt: %s", warning)
	}
	key := []byte(masterKey)
	indexKey := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(blindIndexInfo)), indexKey); err != nil {
		return nil, err
	}
	return &Codec{masterKey: key, indexKey: indexKey, logger: logger}, nil
}

func (c *Codec) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(c.masterKey, salt, PBKDF2Iterations, KeySize, sha512.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, IVSize)
}

// EncryptField encrypts plaintext. An empty plaintext still produces a
// ciphertext with an empty ciphertext segment.
func (c *Codec) EncryptField(plaintext string) (string, error) {
	if c == nil || len(c.masterKey) == 0 {
		return "", ErrMissingKey
	}
	salt, err := utils.RandBytes(SaltSize)
	if err != nil {
		return "", err
	}
	iv, err := utils.RandBytes(IVSize)
	if err != nil {
		return "", err
	}
	aead, err := newGCM(c.deriveKey(salt))
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, iv, []byte(plaintext), []byte(associatedData))
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]
	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(ct),
		hex.EncodeToString(tag),
	}, ":"), nil
}

// EncryptOptional passes nil through unchanged.
func (c *Codec) EncryptOptional(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	out, err := c.EncryptField(*plaintext)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DecryptField returns the plaintext, or value unchanged when it is not a
// ciphertext or cannot be decrypted with the current key.
func (c *Codec) DecryptField(value string) string {
	if c == nil || !IsEncrypted(value) {
		return value
	}
	out, err := c.decrypt(value)
	if err != nil {
		if c.logger != nil {
			c.logger.Warnf("fieldcrypt: decrypt failed, returning stored value: %v", err)
		}
		return value
	}
	return out
}

func (c *Codec) DecryptOptional(value *string) *string {
	if value == nil {
		return nil
	}
	out := c.DecryptField(*value)
	return &out
}

func (c *Codec) decrypt(value string) (string, error) {
	parts := strings.Split(value, ":")
	var salt []byte
	var ivHex, ctHex, tagHex string
	switch len(parts) {
	case 4:
		s, err := hex.DecodeString(parts[0])
		if err != nil {
			return "", errMalformed
		}
		salt = s
		ivHex, ctHex, tagHex = parts[1], parts[2], parts[3]
	case 3:
		salt = legacySalt
		ivHex, ctHex, tagHex = parts[0], parts[1], parts[2]
	default:
		return "", errMalformed
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != IVSize {
		return "", errMalformed
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", errMalformed
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil || len(tag) != TagSize {
		return "", errMalformed
	}
	aead, err := newGCM(c.deriveKey(salt))
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, iv, append(ct, tag...), []byte(associatedData))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// IsEncrypted reports whether value has the shape of a field ciphertext: three
// or four colon-delimited hex segments, where only the ciphertext segment may
// be empty.
func IsEncrypted(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != 3 && len(parts) != 4 {
		return false
	}
	ctIndex := len(parts) - 2
	for i, p := range parts {
		if p == "" {
			if i == ctIndex {
				continue
			}
			return false
		}
		if !isHex(p) {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'f', ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}

// BlindIndex returns a keyed, deterministic hash of token for equality search
// over encrypted text. It never reveals the token itself.
func (c *Codec) BlindIndex(token string) string {
	mac := hmac.New(sha256.New, c.indexKey)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(token))))
	return hex.EncodeToString(mac.Sum(nil))
}
