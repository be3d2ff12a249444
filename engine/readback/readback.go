// Package readback copies pixels from GPU surfaces into host memory.
//
// The Service hides the two device readback primitives behind one context-aware call: mapped devices copy
// into a padded transfer buffer and map it asynchronously, immediate devices transfer synchronously.
// Either way the caller receives a tightly packed PixelBuffer whose row 0 is the bottom row of the region.
package readback

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/charmbracelet/log"
)

// Service reads pixels back from GPU surfaces of a single device.
type Service interface {
	// Backend returns the readback capability the service was built for.
	//
	// Returns:
	//   - common.BackendKind: the device kind chosen at construction
	Backend() common.BackendKind

	// ReadPixels copies a region of target into a new tightly packed buffer.
	// The region is checked against the target before any GPU work; nil reads the whole target.
	// On mapped devices the call suspends until the transfer buffer is mapped or ctx is done.
	//
	// Parameters:
	//   - ctx: cancels the wait for the mapping
	//   - target: the surface to read; borrowed, never released by the service
	//   - region: the region to read with a bottom-left origin, or nil for the full target
	//
	// Returns:
	//   - *common.PixelBuffer: the pixels, row 0 being the bottom row of the region
	//   - error: ErrPrecondition for invalid arguments, a *Error for device failures, or ctx.Err()
	ReadPixels(ctx context.Context, target gpu.Handle, region *common.Region) (*common.PixelBuffer, error)

	// ReadPixelsSync is the blocking form of ReadPixels.
	//
	// Deprecated: use ReadPixels. Mapped devices cannot read synchronously and return ErrUnsupported.
	//
	// Parameters:
	//   - target: the surface to read
	//   - region: the region to read, or nil for the full target
	//
	// Returns:
	//   - *common.PixelBuffer: the pixels, row 0 being the bottom row of the region
	//   - error: ErrUnsupported on mapped devices, otherwise as ReadPixels
	ReadPixelsSync(target gpu.Handle, region *common.Region) (*common.PixelBuffer, error)
}

// Error reports a copy, map or transfer failure for a specific target and region.
// It matches common.ErrBackend with errors.Is, as well as the device error it wraps.
type Error struct {
	// Op is the failing step: "copy", "map", "wrap" or "read".
	Op string
	// Target is the label of the surface being read.
	Target string
	// Region is the effective region of the read.
	Region common.Region
	// Err is the device error.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("readback %s of %q region %s: %v", e.Op, e.Target, e.Region, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{common.ErrBackend, e.Err}
}

func newError(op string, target gpu.Handle, region common.Region, err error) *Error {
	return &Error{Op: op, Target: target.Label(), Region: region, Err: err}
}

// service is the implementation of the Service interface.
type service struct {
	kind         common.BackendKind
	backend      readbackBackend
	pollInterval time.Duration
	logger       *log.Logger
}

var _ Service = &service{}

// NewService creates a readback service for device, selecting the backend once by device.Kind().
//
// Parameters:
//   - device: the GPU device; must implement the readback primitive matching its kind
//   - options: service options
//
// Returns:
//   - Service: the service
//   - error: an ErrCapability-wrapped error if the device lacks the primitive for its kind
func NewService(device gpu.Device, options ...ReadbackBuilderOption) (Service, error) {
	s := &service{
		kind:         device.Kind(),
		pollInterval: time.Millisecond,
		logger:       log.New(io.Discard),
	}
	for _, opt := range options {
		opt(s)
	}

	switch s.kind {
	case common.BackendKindMapped:
		mapped, ok := device.(gpu.MappedReadback)
		if !ok {
			return nil, fmt.Errorf("%w: %s device has no mapped readback", common.ErrCapability, device.Name())
		}
		s.backend = newMappedBackend(mapped, s.pollInterval)
	case common.BackendKindImmediate:
		immediate, ok := device.(gpu.ImmediateReadback)
		if !ok {
			return nil, fmt.Errorf("%w: %s device has no immediate readback", common.ErrCapability, device.Name())
		}
		s.backend = newImmediateBackend(immediate)
	default:
		return nil, fmt.Errorf("%w: unknown backend %s", common.ErrCapability, s.kind)
	}
	return s, nil
}

func (s *service) Backend() common.BackendKind {
	return s.kind
}

func (s *service) ReadPixels(ctx context.Context, target gpu.Handle, region *common.Region) (*common.PixelBuffer, error) {
	r, err := s.validate(target, region)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	pb, err := s.backend.ReadPixels(ctx, target, r)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("readback", "target", target.Label(), "region", r, "format", target.Format(), "backend", s.kind, "took", time.Since(start))
	return pb, nil
}

func (s *service) ReadPixelsSync(target gpu.Handle, region *common.Region) (*common.PixelBuffer, error) {
	if s.kind == common.BackendKindMapped {
		return nil, fmt.Errorf("%w: synchronous readback on %s backend", common.ErrUnsupported, s.kind)
	}
	r, err := s.validate(target, region)
	if err != nil {
		return nil, err
	}
	return s.backend.ReadPixelsSync(target, r)
}

// validate checks the handle and resolves the region before any GPU work.
func (s *service) validate(target gpu.Handle, region *common.Region) (common.Region, error) {
	if target == nil {
		return common.Region{}, fmt.Errorf("%w: nil target", common.ErrPrecondition)
	}
	if target.Backend() != s.kind {
		return common.Region{}, fmt.Errorf("%w: target %q belongs to a %s device, service is %s",
			common.ErrPrecondition, target.Label(), target.Backend(), s.kind)
	}
	if _, err := target.Format().BytesPerPixel(); err != nil {
		return common.Region{}, fmt.Errorf("target %q: %w", target.Label(), err)
	}
	r, err := common.ResolveRegion(region, target.Width(), target.Height())
	if err != nil {
		return common.Region{}, fmt.Errorf("target %q: %w", target.Label(), err)
	}
	return r, nil
}
