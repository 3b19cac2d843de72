package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns "<prefix>-<uuid v7>". v7 ids sort by creation time, which keeps
// transaction lists and logs stable when ordered by id.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return prefix + "-" + id.String()
}

// Suffix is a bare random token for ids that already carry their own prefix.
func Suffix() string {
	return uuid.NewString()
}
