package types

import "errors"

var (
	// ErrPaginatedResponse is returned when the billing backend reports more
	// result pages than were fetched. Pagination is not handled, and partial
	// totals must never be reported as if they were complete.
	ErrPaginatedResponse = errors.New("billing backend returned a paginated response, which is not supported")

	// ErrMissingClusterName is returned when no cluster name is configured,
	// making cost attribution impossible.
	ErrMissingClusterName = errors.New("cluster name is not configured")

	// ErrUnknownComponent is returned when a usage query names a component
	// with no registered query expression.
	ErrUnknownComponent = errors.New("no usage query registered for component")
)
