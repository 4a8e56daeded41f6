package simplemanga

import "github.com/google/uuid"

// NewID returns a time-ordered UUIDv7 string. The millisecond prefix keeps
// keys sortable by creation time and the random tail keeps concurrent
// callers from colliding.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
