package gputest

import (
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
)

// transfer is an in-memory transfer buffer whose map callback fires from Poll.
type transfer struct {
	device    *Device
	data      []byte
	callback  func(error)
	mapErr    error
	polls     int
	mapped    bool
	destroyed bool
}

var _ gpu.TransferBuffer = &transfer{}

func (t *transfer) Size() int {
	return len(t.data)
}

func (t *transfer) MapAsync(callback func(err error)) error {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	t.callback = callback
	t.mapErr = t.device.failNextMap
	t.device.failNextMap = nil
	t.polls = t.device.PollsBeforeMap
	return nil
}

func (t *transfer) Poll() {
	if t.callback == nil {
		return
	}
	if t.polls > 1 {
		t.polls--
		return
	}
	cb := t.callback
	t.callback = nil
	t.mapped = t.mapErr == nil
	cb(t.mapErr)
}

func (t *transfer) MappedRange() []byte {
	if !t.mapped {
		return nil
	}
	return t.data
}

func (t *transfer) Unmap() {
	t.mapped = false
}

func (t *transfer) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.device.mu.Lock()
	t.device.liveTransfers--
	t.device.mu.Unlock()
}
