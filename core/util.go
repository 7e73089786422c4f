package core

import (
	"fmt"

	"github.com/google/uuid"
)

// typeName renders a human-readable type name for error details.
func typeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

// NewID returns a fresh unique identifier, used for AsyncRef ids.
func NewID() string {
	return uuid.NewString()
}
