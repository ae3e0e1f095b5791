package db

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrPermissionDenied is returned when the store's access rules reject a call.
	ErrPermissionDenied = errors.New("permission denied")
)

// wrapError maps Firestore gRPC codes onto the package sentinels.
func wrapError(err error, op, collection, id string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s %s '%s': %w", op, collection, id, ErrNotFound)
	case codes.PermissionDenied:
		return fmt.Errorf("%s %s '%s': %w", op, collection, id, ErrPermissionDenied)
	}
	return fmt.Errorf("failed to %s %s '%s': %w", op, collection, id, err)
}
