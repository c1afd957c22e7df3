package timetable

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("timetable entry not found")
	ErrClassNotFound = errors.New("class has no timetable entries")
)

// IsNotFound reports whether err is caused by a missing entry (or a class without entries).
func IsNotFound(err error) bool {
	cause := errors.Cause(err)
	return cause == ErrNotFound || cause == ErrClassNotFound
}

// ConflictError is returned when committing an entry would double-book a teacher or a room.
type ConflictError struct {
	Conflicts []Conflict `json:"conflicts"`
}

func (err *ConflictError) Error() string {
	msgs := make([]string, 0, len(err.Conflicts))
	for _, c := range err.Conflicts {
		msgs = append(msgs, c.Message)
	}
	return "timetable conflict: " + strings.Join(msgs, "; ")
}

// Kinds returns the kinds of all conflicts, in order.
func (err *ConflictError) Kinds() []ConflictKind {
	kinds := make([]ConflictKind, 0, len(err.Conflicts))
	for _, c := range err.Conflicts {
		kinds = append(kinds, c.Kind)
	}
	return kinds
}

// BulkItemError reports a rejected item of a bulk allocation.
type BulkItemError struct {
	Index     int        `json:"index"` // position in the submitted batch
	Entry     NewEntry   `json:"entry"`
	Conflicts []Conflict `json:"conflicts"`
}

// BulkError is returned when some items of a bulk allocation conflicted.
// Created entries are already committed.
type BulkError struct {
	Created []Entry         `json:"created"`
	Errors  []BulkItemError `json:"errors"`
}

func (err *BulkError) Error() string {
	return fmt.Sprintf("%d of %d timetable entries conflicted", len(err.Errors), len(err.Created)+len(err.Errors))
}
