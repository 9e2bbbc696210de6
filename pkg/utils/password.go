package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// unusablePrefix can never appear at the start of a bcrypt hash.
const unusablePrefix = "!"

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// UnusablePassword returns a stored password value that no input will ever
// match. Accounts created through a chat binding have no password login.
func UnusablePassword() (string, error) {
	hash, err := HashPassword(GenerateUUID().String())
	if err != nil {
		return "", err
	}
	return unusablePrefix + hash, nil
}
