package idhash

import "github.com/google/uuid"

// NewRunID mints a time-sortable 128-bit run identifier (UUID v7).
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
