package repository

import (
	"errors"
	"os"
)

// ErrDuplicateRecord is returned when a create collides with an existing id.
var ErrDuplicateRecord = errors.New("record already exists")

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func gatewayRef(gateway, externalID string) string {
	return gateway + "#" + externalID
}
