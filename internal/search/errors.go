package search

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNotFound is returned when a point does not exist in the backend.
// The coordinator treats it as the expected "new artifact" signal, not
// a failure.
var ErrNotFound = errors.New("search: point not found")

// Kind classifies backend errors so callers branch on structure instead
// of matching error text.
type Kind int

const (
	// KindNotFound: the addressed point or collection does not exist.
	KindNotFound Kind = iota
	// KindTransient: worth retrying on a later call (timeouts, overload,
	// connectivity).
	KindTransient
	// KindFatal: misconfiguration or a bug; retrying will not help.
	KindFatal
)

// Classify maps an error from the vector backend to its Kind.
func Classify(err error) Kind {
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.NotFound:
			return KindNotFound
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return KindTransient
		}
	}
	return KindFatal
}
