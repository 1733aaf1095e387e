package reference

import "errors"

// ErrInvalidReference indicates a reference is empty, oversized or contains
// characters that cannot be carried as an opaque locator.
var ErrInvalidReference = errors.New("reference: invalid reference")
