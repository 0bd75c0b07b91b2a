package auth

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsLegacyHash reports whether hash is an unsalted md5 digest left over from
// accounts created before bcrypt.
func IsLegacyHash(hash string) bool {
	return len(hash) == md5.Size*2 && !strings.HasPrefix(hash, "$")
}

// CheckPassword compares password against hash, accepting both bcrypt and
// legacy md5 hashes.
func CheckPassword(hash, password string) bool {
	if IsLegacyHash(hash) {
		sum := md5.Sum([]byte(password))
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(hex.EncodeToString(sum[:]))) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
