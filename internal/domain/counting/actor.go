package counting

import "github.com/google/uuid"

// Actor identifies the operator performing an action
type Actor struct {
	ID   uuid.UUID
	Name string
}

// Origin describes where a request came from, recorded for auditing
type Origin struct {
	IPAddress string
	UserAgent string
}
