package family

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	InviteCodeLength = 10
	inviteAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewInviteCode returns a random code of uppercase letters and digits.
func NewInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteAlphabet)))
	var b strings.Builder
	b.Grow(InviteCodeLength)
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeInviteCode uppercases and trims user input so lookups ignore case.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
