package persistence

import "errors"

// ErrDirectoryCreate is returned by Setup when the storage root cannot be
// created for a reason other than it already existing.
var ErrDirectoryCreate = errors.New("create storage directory failed")
