package store

import (
	"errors"
	"fmt"
)

// Store is the gig and assignment state interface for gigd.
// Defined at the consumer side per Go conventions.
type Store interface {
	// Gigs
	CreateGig(date, clientEmail string, fee int64) (*Gig, error)
	GetGig(id string) (*Gig, error)
	ListGigs() ([]GigWithGents, error)
	UpdateGig(id string, patch GigPatch) (*Gig, error)

	// Assignments
	SetAssignment(gigID, gentID string, assigned bool) ([]string, error)
	ListGigsForGent(gentID string) ([]Gig, error)

	// Notifications
	SetNotifyFunc(fn NotifyFunc)

	Close() error
}

// Gig is a schedulable job record. The ID is immutable; date, client
// email and fee are patched in place. The date is an opaque
// "YYYY-MM-DD" string — no calendar arithmetic is applied to it.
type Gig struct {
	ID          string
	Date        string
	ClientEmail string
	Fee         int64
}

// GigWithGents pairs a gig with its sorted assignee list.
type GigWithGents struct {
	Gig
	Gents []string
}

// GigPatch carries a partial update. A nil field means "leave unchanged".
type GigPatch struct {
	Date        *string
	ClientEmail *string
	Fee         *int64
}

// NotifyFunc is called once per gent whose visible gig state changed.
// The store invokes it after the mutation is applied and before the
// mutating operation returns; it must not block.
type NotifyFunc func(gentID string)

// Sentinel errors for the two referential-integrity failures.
var (
	ErrGigNotFound = errors.New("gig not found")
	ErrUnknownGent = errors.New("unknown gent id")
)

// ValidationError reports a malformed client-supplied field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
