package uid

import (
	"github.com/google/uuid"
)

// GenerateGameID returns a random (version 4) UUID string
func GenerateGameID() string {
	return uuid.NewString()
}

// IsGameID reports whether s looks like an id produced by GenerateGameID
func IsGameID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
