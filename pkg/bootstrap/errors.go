package bootstrap

import "errors"

// Bootstrap server errors.
var (
	// ErrRegistryFull is returned when register is called at capacity.
	ErrRegistryFull = errors.New("bootstrap: client registry full")
)
