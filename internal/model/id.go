package model

import "github.com/oklog/ulid/v2"

// NewID returns a new ULID string. ULIDs from one process are monotonic, so
// ids sort in creation order.
func NewID() string {
	return ulid.Make().String()
}
