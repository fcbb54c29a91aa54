// Package store defines the document-store boundary every portal screen reads
// and writes through, plus the backends the gateway can run against.
package store

import (
	"context"
	"fmt"

	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

// Collection names used by the portal screens.
const (
	CollectionStudents      = "students"
	CollectionApplications  = "applications"
	CollectionNotifications = "notifications"
	CollectionCourses       = "courses"
	CollectionGroups        = "groups"
	CollectionEvents        = "events"
	CollectionMemberships   = "memberships"
	CollectionHelpRequests  = "help_requests"
)

// Record is one document snapshot. Fields is never nil on records returned by
// a RemoteStore.
type Record struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// RemoteStore is the only capability the screen core needs from the backend.
//
// FetchAll returns every document of a collection in the backend's natural
// order and fails with ErrStoreUnavailable or ErrStoreMalformed. WriteField
// sets a single field, creating the document when it does not exist, and fails
// with ErrStoreUnavailable.
type RemoteStore interface {
	FetchAll(ctx context.Context, collection string) ([]Record, error)
	WriteField(ctx context.Context, collection, id, field string, value interface{}) error
}

// Closer is implemented by stores holding connections.
type Closer interface {
	Close() error
}

func unavailable(err error, op, collection string) error {
	return appErrors.WrapAs(appErrors.ErrStoreUnavailable, err, fmt.Sprintf("%s %s", op, collection))
}

func malformed(err error, collection, id string) error {
	return appErrors.WrapAs(appErrors.ErrStoreMalformed, err, fmt.Sprintf("decode %s/%s", collection, id))
}

func validateKey(collection, id, field string) error {
	if collection == "" || id == "" || field == "" {
		return appErrors.Clone(appErrors.ErrValidation, "collection, id and field are required")
	}
	return nil
}
