package common

import (
	"errors"
	"fmt"
)

// Error kinds shared by every capture package. Callers match them with errors.Is; the
// concrete errors returned carry the context (target, region, frame) in their message.
var (
	// ErrCapability is returned when a device cannot satisfy a requested render format.
	ErrCapability = errors.New("device capability missing")

	// ErrPrecondition is returned for invalid arguments detected before any GPU work.
	ErrPrecondition = errors.New("precondition violated")

	// ErrUnsupported is returned when an operation is not available on the active backend.
	ErrUnsupported = fmt.Errorf("%w: operation unsupported on this backend", ErrPrecondition)

	// ErrBackend is returned when the device reports a copy or mapping failure.
	ErrBackend = errors.New("backend failure")

	// ErrRenderTimeout is returned when the renderer never signals a finished frame.
	ErrRenderTimeout = fmt.Errorf("%w: renderer did not signal frame completion", ErrBackend)

	// ErrConcurrency is returned when an export run is started while another is active.
	ErrConcurrency = errors.New("export run already active")

	// ErrCodec is returned for invalid encoder arguments.
	ErrCodec = errors.New("invalid codec argument")
)
