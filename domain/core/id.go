package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// invocationNamespace scopes name-based invocation IDs.
var invocationNamespace = uuid.MustParse("6f1c8e2a-4b7d-5c3e-9a10-2d4e6f8a0b1c")

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// InvocationID identifies one pipeline invocation.
type InvocationID ID

func (id InvocationID) String() string { return ID(id).String() }

// NewInvocationID derives a stable ID from the invocation fingerprint, so
// re-running on unchanged input yields the same ID.
func NewInvocationID(fp Fingerprint) InvocationID {
	return InvocationID(uuid.NewSHA1(invocationNamespace, []byte(fp)).String())
}

// ParseInvocationID parses a string into InvocationID
func ParseInvocationID(s string) (InvocationID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("invocation ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid invocation ID %q: %w", s, err)
	}
	return InvocationID(s), nil
}
