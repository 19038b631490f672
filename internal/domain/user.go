package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Language     string
	DeviceTokens []string
	CreatedAt    time.Time
}
