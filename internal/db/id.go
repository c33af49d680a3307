package db

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns an opaque document id. Dashes are dropped so an id can be
// recovered from the last segment of a "slug-id" path.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
