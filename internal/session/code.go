package session

import (
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
)

var ErrBadCode = errors.New("malformed session code")

// Codes look like "QZ-84K9": fixed prefix, hyphen, four uppercase
// alphanumerics. Input is case-insensitive; storage is uppercase.
var codePattern = regexp.MustCompile(`^[A-Z]{2}-[A-Z0-9]{4}$`)

const codePrefix = "QZ-"

// GenerateCode returns a random session code. Uniqueness against live
// sessions is the caller's job (retry on collision).
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	suffix := make([]byte, 4)
	for i := range suffix {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		suffix[i] = charset[num.Int64()]
	}
	return codePrefix + string(suffix), nil
}

// NormalizeCode uppercases and validates a user-entered session code.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(c) {
		return "", ErrBadCode
	}
	return c, nil
}
