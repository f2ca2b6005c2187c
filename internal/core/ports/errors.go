package ports

import "errors"

// ErrTokenNotFound is returned by TokenStore.Get for a missing key.
var ErrTokenNotFound = errors.New("token not found")
