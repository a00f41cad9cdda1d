package util

import "github.com/google/uuid"

// NewID returns a random identifier, prefixed as "prefix_<uuid>" when a
// prefix is given.
func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
