package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// ErrPasswordLength is returned for passwords shorter than
// MinPasswordLength or longer than bcrypt can hash (72 bytes).
var ErrPasswordLength = errors.New("password must be between 8 and 72 bytes")

// ValidatePassword checks a registration password before it is hashed.
func ValidatePassword(plain string) error {
	if len(plain) < MinPasswordLength || len(plain) > 72 {
		return ErrPasswordLength
	}
	return nil
}

// HashPassword returns a bcrypt hash.  Costs outside bcrypt's range are
// clamped so a bad BCRYPT_COST cannot break registration.
func HashPassword(plain string, cost int) (string, error) {
	if err := ValidatePassword(plain); err != nil {
		return "", err
	}
	cost = max(bcrypt.MinCost, min(cost, bcrypt.MaxCost))
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a stored bcrypt hash with a login attempt.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
