// Package remote talks to the connections API.
package remote

import (
	"context"
	"errors"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// Source is the remote connection source.
type Source interface {
	// ListOutOfSync returns the connections whose local copy is stale.
	ListOutOfSync(ctx context.Context) ([]contact.ConnectionRef, error)

	// FetchDetail returns the full, permission-filtered profile of a connection.
	FetchDetail(ctx context.Context, connectionID string) (*contact.ConnectionDetail, error)

	// AcknowledgeSynced marks a connection as in sync. It is safe to repeat.
	AcknowledgeSynced(ctx context.Context, connectionID string) error
}

// Errors returned by Source implementations. Concrete failures wrap one of them.
var (
	ErrNotFound       = errors.New(config.ErrRemoteNotFound)
	ErrUnauthorized   = errors.New(config.ErrRemoteUnauthorized)
	ErrNetwork        = errors.New(config.ErrRemoteNetwork)
	ErrInvalidPayload = errors.New(config.ErrRemotePayload)
)
