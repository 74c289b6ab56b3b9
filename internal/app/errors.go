package app

import "errors"

// ErrValidation marks request payloads rejected before touching storage or
// the network. The HTTP layer maps it to a client error.
var ErrValidation = errors.New("validation failed")
