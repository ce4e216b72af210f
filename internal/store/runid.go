package store

import "github.com/google/uuid"

// RunIDGenerator produces IDs for QueryRun records.
type RunIDGenerator interface {
	Generate() string
}

// UUIDGenerator generates time-ordered UUIDv7 run IDs, so IDs sort in the
// same order as seq.
type UUIDGenerator struct{}

// Generate returns a new UUIDv7. It falls back to a random UUIDv4 if the
// clock can not be read.
func (UUIDGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
