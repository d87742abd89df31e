package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvariant marks a call that would break a structural invariant of the
	// graph. It indicates a bug in the caller rather than a runtime condition.
	ErrInvariant = errors.New("schema graph invariant violated")

	// ErrMissingMappingColumn is returned when a column mapping is realized
	// while its primary or foreign key column is unknown.
	ErrMissingMappingColumn = fmt.Errorf("%w: missing column in mapping", ErrInvariant)

	// ErrNotMember is returned when a column is used with a table or index it
	// does not belong to.
	ErrNotMember = fmt.Errorf("%w: column does not belong to this table", ErrInvariant)

	// ErrDuplicateColumn is returned when a column is added to an index twice.
	ErrDuplicateColumn = fmt.Errorf("%w: column already present in index", ErrInvariant)

	// ErrPrimaryKeyIndex is returned on attempts to remove or replace a
	// table's primary key index. The index can only be emptied.
	ErrPrimaryKeyIndex = fmt.Errorf("%w: the primary key index cannot be removed", ErrInvariant)

	ErrAlreadyAttached = fmt.Errorf("%w: relationship is already attached", ErrInvariant)
	ErrNotAttached     = fmt.Errorf("%w: relationship is not attached", ErrInvariant)
	ErrSelfIdentifying = fmt.Errorf("%w: a self-referencing relationship cannot be identifying", ErrInvariant)
	ErrNoTransaction   = fmt.Errorf("%w: commit without a matching begin", ErrInvariant)

	// ErrLockedColumn is matched by LockedColumnError.
	ErrLockedColumn = errors.New("column is locked by a relationship")

	ErrNoSource         = errors.New("no metadata source configured")
	ErrTableNotFound    = errors.New("table not found")
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// LockedColumnError reports an attempt to remove, or move out of its key, a
// column that one or more relationships use as a foreign key column.
type LockedColumnError struct {
	Column        *Column
	Relationships []*Relationship
}

// Error names the column and the relationships holding it.
func (e *LockedColumnError) Error() string {
	names := make([]string, len(e.Relationships))
	for i, r := range e.Relationships {
		names[i] = r.Name()
	}
	return fmt.Sprintf("column %q is used by relationship %s", e.Column.Name(), strings.Join(names, ", "))
}

// Is makes errors.Is(err, ErrLockedColumn) succeed.
func (e *LockedColumnError) Is(target error) bool {
	return target == ErrLockedColumn
}

// PopulateError records why the children of a node could not be loaded. It
// is stored on the node as the inaccessibility reason for its category and
// returned to the caller that triggered population.
type PopulateError struct {
	Node     Node
	Category Category
	Err      error
}

// Error names the node and the category that failed to load.
func (e *PopulateError) Error() string {
	return fmt.Sprintf("populate %s of %q: %v", e.Category, e.Node.Name(), e.Err)
}

// Unwrap returns the error reported by the metadata source.
func (e *PopulateError) Unwrap() error {
	return e.Err
}
