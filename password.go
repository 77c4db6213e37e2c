package accounts

import (
	"errors"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is the normalized bcrypt mismatch error
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// HashPassword will generate a password hash with a unique salt per call
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

// IsStrongPassword checks a password against the strength policy: at least 8
// characters, not a known common password, and containing upper, lower, digit,
// and punctuation classes. Pure function, no side effects.
func IsStrongPassword(password string) bool {
	if len(password) < 8 {
		return false
	}

	if _, common := commonPasswords[password]; common {
		return false
	}

	return hasVariousChars(password)
}

func hasVariousChars(password string) bool {
	var upper, lower, digit, other bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	return upper && lower && digit && other
}

// commonPasswords is a fixed denylist matched case-sensitively.
var commonPasswords = func() map[string]struct{} {
	list := []string{
		"password", "123456789", "12345678", "12345", "1234567",
		"sunshine", "qwerty", "iloveyou", "princess", "admin",
		"welcome", "666666", "abc123", "football", "123123",
		"monkey", "654321", "superman", "1qaz2wsx", "7777777",
		"121212", "000000", "qazwsx", "123qwe", "killer",
		"trustno1", "jordan", "jennifer", "zxcvbnm", "asdfgh",
		"hunter", "buster", "soccer", "harley", "batman",
		"andrew", "tigger", "2000", "charlie", "robert",
		"thomas", "hockey", "ranger", "daniel", "starwars",
		"klaster", "admin123",
	}
	set := make(map[string]struct{}, len(list))
	for _, p := range list {
		set[p] = struct{}{}
	}
	return set
}()
