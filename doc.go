// Package soi defines the core types and helpers shared across the SOI
// (Scalable Ordered Index) codebase: store options and metadata, the UUID
// node identifier, generic pair/tuple types, shared error codes, logging
// configuration, and small concurrency utilities.
//
// The B-tree itself lives in the btree subpackage; the inmemory subpackage
// wraps it with an asynchronous single-writer pipeline behind a map-like
// API, and restapi exposes a diagnostic HTTP surface over named maps.
package soi
