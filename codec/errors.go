package codec

import "errors"

// Sentinel errors for codec operations.
var (
	ErrCorruptStore     = errors.New("corrupt store")
	ErrReadFailed       = errors.New("read failed")
	ErrWriteFailed      = errors.New("write failed")
	ErrUnsupportedValue = errors.New("unsupported value")
)
