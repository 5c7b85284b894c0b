package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/yukikurage/taskflow-api/internal/constants"
)

// GenerateInviteToken returns a hex-encoded token built from InviteTokenBytes random bytes.
func GenerateInviteToken() (string, error) {
	bytes := make([]byte, constants.InviteTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

// IsWellFormedInviteToken reports whether token has the shape produced by GenerateInviteToken.
func IsWellFormedInviteToken(token string) bool {
	if len(token) != constants.InviteTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
