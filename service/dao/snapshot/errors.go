package snapshot

import "errors"

// ErrExists is returned when saving a version that is already stored.
var ErrExists = errors.New("snapshot: version already exists")
