package window

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrClosed is returned by Do once the window has been closed.
var ErrClosed = errors.New("window is closed")

// Window owns a GLFW window and its OpenGL context.
// All GL calls must go through Do, which runs them on the single OS thread the context is current on.
type Window interface {
	// Do runs fn on the context thread and waits for it to return.
	// fn must not call Do itself.
	//
	// Parameters:
	//   - fn: the function to run with the GL context current
	//
	// Returns:
	//   - error: the error returned by fn, or ErrClosed if the window is closed
	Do(fn func() error) error

	// SetResizeCallback sets the function called when the framebuffer is resized.
	// The callback runs on the context thread and must not call Do.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SwapBuffers presents the default framebuffer. Only meaningful for visible windows.
	//
	// Returns:
	//   - error: ErrClosed if the window is closed
	SwapBuffers() error

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close destroys the window, terminates GLFW and stops the context thread.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// call is one unit of work queued for the context thread.
type call struct {
	fn   func() error
	done chan error
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// width is the current framebuffer width in pixels.
	width int

	// height is the current framebuffer height in pixels.
	height int

	// visible shows the window on screen. Capture contexts are hidden.
	visible bool

	// contextMajor and contextMinor select the requested core-profile GL version.
	contextMajor int
	contextMinor int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	// onResize is called when the framebuffer is resized.
	onResize func(width, height int)

	calls     chan call
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
	mu        *sync.Mutex
}

var _ Window = &engineWindow{}

// NewWindow creates a window and its GL context on a dedicated, locked OS thread.
// Applies default values first, then each option in order. The window is hidden unless WithVisible is given.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window, with its context ready for Do
//   - error: error if GLFW or the context could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:        "oxy-capture",
		width:        1,
		height:       1,
		contextMajor: 3,
		contextMinor: 3,
		calls:        make(chan call),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
		mu:           &sync.Mutex{},
	}
	for _, opt := range options {
		opt(w)
	}

	ready := make(chan error, 1)
	go w.loop(ready)
	if err := <-ready; err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

// loop owns the context thread: it creates the platform window, then serves calls until Close.
func (w *engineWindow) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.stopped)

	if err := newPlatformWindow(w); err != nil {
		ready <- err
		return
	}
	ready <- nil

	for {
		select {
		case c := <-w.calls:
			c.done <- c.fn()
			platformProcessMessages(w)
		case <-w.quit:
			w.closeErr = platformCloseWindow(w)
			return
		}
	}
}

func (w *engineWindow) Do(fn func() error) error {
	c := call{fn: fn, done: make(chan error, 1)}
	select {
	case w.calls <- c:
	case <-w.stopped:
		return ErrClosed
	}
	return <-c.done
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onResize = callback
}

func (w *engineWindow) SwapBuffers() error {
	return w.Do(func() error {
		platformSwapBuffers(w)
		return nil
	})
}

func (w *engineWindow) IsRunning() bool {
	select {
	case <-w.stopped:
		return false
	default:
	}
	running := true
	if err := w.Do(func() error {
		running = platformIsRunningCheck(w)
		return nil
	}); err != nil {
		return false
	}
	return running
}

func (w *engineWindow) Close() error {
	w.closeOnce.Do(func() {
		close(w.quit)
		<-w.stopped
	})
	return w.closeErr
}

func (w *engineWindow) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width
}

func (w *engineWindow) Height() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height
}

// setSize records a framebuffer size reported by the platform and fires the resize callback.
func (w *engineWindow) setSize(width, height int) {
	w.mu.Lock()
	w.width = width
	w.height = height
	cb := w.onResize
	w.mu.Unlock()
	if cb != nil {
		cb(width, height)
	}
}
