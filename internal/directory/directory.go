// Package directory implements the local contact directory on top of a
// vCard file.
package directory

import (
	"errors"

	"github.com/tartampluch/go-contactsync/internal/config"
)

// Errors returned by directory operations. Concrete failures wrap one of them.
var (
	// ErrPermissionDenied means the address book cannot be read or written.
	ErrPermissionDenied = errors.New(config.ErrDirPermission)

	// ErrStore covers every other storage failure.
	ErrStore = errors.New(config.ErrDirStore)
)
