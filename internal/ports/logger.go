package ports

import (
	"time"

	"github.com/bft-labs/gnsship/pkg/log"
)

// Logger is the structured logging port used by the application layer.
// It aliases the public contract in pkg/log so adapters written against
// either name are interchangeable.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors, re-exported so application code reads as
// ports.String(...), ports.Err(...) without importing pkg/log.

// String creates a string field.
func String(key, value string) Field { return log.String(key, value) }

// Int creates an int field.
func Int(key string, value int) Field { return log.Int(key, value) }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return log.Int64(key, value) }

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field { return log.Uint64(key, value) }

// Float64 creates a float64 field.
func Float64(key string, value float64) Field { return log.Float64(key, value) }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return log.Bool(key, value) }

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field { return log.Duration(key, value) }

// Time creates a time field.
func Time(key string, value time.Time) Field { return log.Time(key, value) }

// Err creates an error field with key "error".
func Err(err error) Field { return log.Err(err) }

// Any creates a field with any value.
func Any(key string, value interface{}) Field { return log.Any(key, value) }
