package utility

import (
	"github.com/google/uuid"
)

// ExecutionID identifies a single simulation run. Independent runs in the same
// process carry different ids.
type ExecutionID = uuid.UUID

func NewExecutionID() ExecutionID {
	return uuid.Must(uuid.NewV7())
}

func ParseExecutionID(s string) (ExecutionID, error) {
	return uuid.Parse(s)
}
