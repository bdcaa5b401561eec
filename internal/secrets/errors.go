package secrets

import "errors"

// ErrInvalidRule is returned for rules or allow list entries that do not compile.
var ErrInvalidRule = errors.New("invalid secret rule")
