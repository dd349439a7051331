// Package domain contains the core domain entities and value objects for gnsship.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (serial I/O, HTTP, file system,
// logging) and contains only pure business logic.
//
// # Entities
//
//   - [Frame]: A single checksum-validated protocol message, text or binary
//   - [Batch]: An ordered aggregate of frames flushed to the collector together
//   - [State]: Persistent state for restart continuity (sequence number, counters)
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
