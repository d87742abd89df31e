package config

import "errors"

// ErrNotFound is returned for a source name that is neither in the config
// file nor saved in the store.
var ErrNotFound = errors.New("not found")
