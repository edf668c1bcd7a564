package scheduling

import "time"

// Clock abstracts wall-clock time so "today" filtering and the completion
// precondition are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func NewSystemClock() Clock { return systemClock{} }
