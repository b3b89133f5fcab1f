package batch

import "squish/models"

// Worker messages are delivered to the scheduler as typed events,
// processed one at a time on the scheduler's loop. Every event carries
// the batch epoch it was produced under; events from a superseded epoch
// are discarded, which is what makes cancellation safe against reads and
// encodes still in flight.
type event interface {
	isEvent()
}

// readDoneEvent reports the outcome of the async source-byte read that
// precedes handoff to a worker.
type readDoneEvent struct {
	epoch uint64
	id    string
	data  []byte
	err   error
}

// progressEvent updates one item's progress value.
type progressEvent struct {
	epoch    uint64
	id       string
	progress int
}

// completeEvent carries a worker's finished result for an item.
type completeEvent struct {
	epoch  uint64
	id     string
	result *models.Result
}

// errorEvent reports a per-item failure. The batch continues.
type errorEvent struct {
	epoch   uint64
	id      string
	message string
}

func (readDoneEvent) isEvent() {}
func (progressEvent) isEvent() {}
func (completeEvent) isEvent() {}
func (errorEvent) isEvent()    {}
