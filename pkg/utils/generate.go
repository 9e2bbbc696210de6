package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ==================== UUID & TOKEN ====================

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

// ==================== OTP ====================

// GenerateOTP creates a numeric OTP of the given length with uniformly
// distributed digits drawn from crypto/rand.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	ten := big.NewInt(10)
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}

	return sb.String(), nil
}

// MaskPhone keeps the first four characters of a phone number for logging.
func MaskPhone(phone string) string {
	return phone[:min(4, len(phone))] + "****"
}
