package chains

import "errors"

// ErrIndexOutOfRange indicates a scenario index outside the store.
var ErrIndexOutOfRange = errors.New("chain scenario: index out of range")
