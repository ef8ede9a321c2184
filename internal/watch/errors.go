package watch

import (
	"errors"
	"fmt"
)

// Error kinds. Adapters wrap them so callers can classify failures with errors.Is.
var (
	// ErrFetch marks a crawler failure: non-zero exit, timeout, or unparsable output.
	ErrFetch = errors.New("fetch failed")
	// ErrStorage marks a read or write failure on persisted topic state.
	ErrStorage = errors.New("state storage failed")
	// ErrStateNotFound is returned when a topic has never been populated.
	ErrStateNotFound = errors.New("state not found")
	// ErrDelivery marks a webhook call that did not succeed.
	ErrDelivery = errors.New("delivery failed")
	// ErrInvalidConfig marks missing or invalid startup configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// DeliveryError reports which batch failed and how many cards were sent before it.
type DeliveryError struct {
	Batch     int
	Batches   int
	Delivered int
	Status    int
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webhook batch %d/%d: status %d (%d cards delivered): %v",
			e.Batch+1, e.Batches, e.Status, e.Delivered, e.Err)
	}
	return fmt.Sprintf("webhook batch %d/%d (%d cards delivered): %v", e.Batch+1, e.Batches, e.Delivered, e.Err)
}

// Unwrap lets errors.Is match both ErrDelivery and the underlying cause.
func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDelivery, e.Err}
}

// Err joins the errors of every failed topic, or returns nil for a clean cycle.
func (r CycleReport) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("topic %s: %w", res.Topic, res.err))
		}
	}
	return errors.Join(errs...)
}
