package access

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes the shared gate password using bcrypt. Used by the
// operator tooling that produces COURSEGATE_GATE_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a submitted password with the configured hash.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
