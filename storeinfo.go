package soi

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSlotLength is used when StoreOptions does not specify one.
	// In-memory trees don't need a wide array per node.
	DefaultSlotLength = 8
	// MinimumSlotLength is the smallest node capacity that still allows a
	// meaningful two-way split.
	MinimumSlotLength = 2
	// DefaultWriterPollInterval is the writer task's queue wait bound.
	DefaultWriterPollInterval = 100 * time.Millisecond
)

// StoreInfo describes an index store's configuration and runtime state.
// It is owned by the store's writer task; readers access it only through
// the visibility gate.
type StoreInfo struct {
	// Name is the short store name.
	Name string
	// SlotLength is the number of items per node.
	SlotLength int
	// Description optionally describes the store.
	Description string
	// RootNodeID is the root B-tree node identifier. Nil until the first
	// applied write bootstraps the tree; reassigned when the root splits.
	RootNodeID UUID
	// Count is the total number of live (non-tombstoned) keys.
	Count int64
	// Height is the number of levels from root to leaves. Zero for an empty
	// tree; it increases only when the root splits.
	Height int
	// WriterPollInterval bounds the writer task's queue wait.
	WriterPollInterval time.Duration
}

// NewStoreInfo validates options and returns the StoreInfo they describe,
// applying defaults for unspecified fields.
func NewStoreInfo(options StoreOptions) (*StoreInfo, error) {
	if strings.TrimSpace(options.Name) == "" {
		return nil, fmt.Errorf("store name can't be empty")
	}
	if options.SlotLength == 0 {
		options.SlotLength = DefaultSlotLength
	}
	if options.SlotLength < MinimumSlotLength {
		return nil, fmt.Errorf("slot length %d is below the minimum of %d", options.SlotLength, MinimumSlotLength)
	}
	if options.WriterPollInterval <= 0 {
		options.WriterPollInterval = DefaultWriterPollInterval
	}
	return &StoreInfo{
		Name:               options.Name,
		SlotLength:         options.SlotLength,
		Description:        options.Description,
		WriterPollInterval: options.WriterPollInterval,
	}, nil
}

// IsEmpty reports whether the store holds no live keys.
func (si *StoreInfo) IsEmpty() bool {
	return si.Count == 0
}
