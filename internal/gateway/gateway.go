// Package gateway defines the contract the data layer expects from the
// remote object store, together with the failure taxonomy the sync logic
// depends on: permanent failures are never retried, everything else is
// presumed transient and queued.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MansurAzad/cashbook/internal/domain"
)

// Object is one stored record as the remote side sees it: a server-assigned
// id plus the record's JSON fields.
type Object struct {
	ID   string         `json:"objectId"`
	Data map[string]any `json:"objectData"`
}

// Remote is the object-store API consumed by the data layer. Implementations
// must wrap failures that can never succeed on retry (missing object, denied
// permission) with Permanent.
type Remote interface {
	// Create stores data as a new object and returns it with its assigned id.
	Create(ctx context.Context, kind domain.Kind, data map[string]any) (Object, error)

	// Update replaces the fields of an existing object.
	Update(ctx context.Context, kind domain.Kind, id string, data map[string]any) (Object, error)

	// Delete removes an object.
	Delete(ctx context.Context, kind domain.Kind, id string) error

	// List returns up to limit objects of the given kind. limit <= 0 means
	// no limit.
	List(ctx context.Context, kind domain.Kind, limit int) ([]Object, error)
}

// PermanentError marks a remote failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError. Wrapping nil returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// permanentMarkers is a best-effort heuristic for errors that reach this
// layer without a PermanentError wrapper, matching the message fragments the
// backend is known to emit. It is a fallback, not a contract.
var permanentMarkers = []string{"NoPermission", "no permission", "NotFound", "not found", "not exist"}

// IsPermanent reports whether err signals a failure that must not be retried.
// Classification is structural when the error carries a PermanentError;
// otherwise it falls back to message matching.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return true
	}
	msg := err.Error()
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// NotFound builds a permanent not-found error for the given object.
func NotFound(kind domain.Kind, id string) error {
	return Permanent(fmt.Errorf("%s %s: not found", kind, id))
}
