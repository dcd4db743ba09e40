package soi

import "time"

// StoreOptions contains configuration fields used when creating an index store.
type StoreOptions struct {
	// Name is the short name of the store.
	Name string
	// SlotLength is the number of items that can be stored in a node before it must split.
	SlotLength int
	// Description is an optional text describing the store.
	Description string
	// WriterPollInterval bounds how long the writer task waits on its queue before
	// re-checking for backlog and termination. It is a liveness knob, not a
	// correctness mechanism.
	WriterPollInterval time.Duration
}
