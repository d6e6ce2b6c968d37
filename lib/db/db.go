package db

import (
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// EntryKind is the kind of value stored under a key
type EntryKind int

const (
	KindNone   EntryKind = iota // no (live) entry for the key
	KindScalar                  // a byte string, optionally with an expiry
	KindList                    // a double-ended sequence of byte strings
)

func (k EntryKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindScalar:
		return "string"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

type DatabaseInfo struct {
	Keys         int            `json:"keys"`
	ScalarKeys   int            `json:"scalar_keys"`
	ListKeys     int            `json:"list_keys"`
	ExpiringKeys int            `json:"expiring_keys"`
	DbType       Implementation `json:"db_type"`
	Metadata     interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines the interface of the keyed store behind the command dispatcher.
// A key maps to exactly one entry, either a scalar (with optional expiry) or a list.
// Operating on a key that holds the other kind fails with RetCWrongType, entries
// are never converted implicitly.
//
// Every single-key operation is atomic with respect to all other operations on the same key.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Scalar Operations
	// --------------------------------------------------------------------------

	// Get returns the scalar value of key.
	// It fails with RetCKeyAbsent if the key is missing or expired and with RetCWrongType for lists.
	Get(key string) (value []byte, err error)

	// Set stores value under key, replacing any previous entry (of any kind) and clearing its expiry.
	Set(key string, value []byte)

	// SetE stores value under key with an expiry ttl from now.
	// A ttl <= 0 stores an entry that is already expired.
	SetE(key string, value []byte, ttl time.Duration)

	// Incr adds one to the integer stored at key (missing key counts as 0) and returns the new value.
	Incr(key string) (value int64, err error)

	// Decr subtracts one from the integer stored at key (missing key counts as 0) and returns the new value.
	Decr(key string) (value int64, err error)

	// IncrBy adds delta to the integer stored at key. It fails with RetCNotInteger
	// if the current value is not a base-10 integer or the result would overflow.
	IncrBy(key string, delta int64) (value int64, err error)

	// --------------------------------------------------------------------------
	// List Operations
	// --------------------------------------------------------------------------

	// PushFront prepends items one after another to the list at key (creating it if absent)
	// and returns the new length. Pushing a, b yields the list b, a.
	PushFront(key string, items ...[]byte) (length int, err error)

	// PushBack appends items to the list at key (creating it if absent) and returns the new length.
	PushBack(key string, items ...[]byte) (length int, err error)

	// Range returns stop-start elements of the list at key starting at start, clipped to the list bounds.
	// Negative, reversed or out-of-range bounds and missing keys yield an empty result, never an error.
	Range(key string, start, stop int) (items [][]byte, err error)

	// --------------------------------------------------------------------------
	// Generic Key Operations
	// --------------------------------------------------------------------------

	// Has reports whether a live entry exists for key.
	Has(key string) (loaded bool)

	// Delete removes the entry for key and reports whether a live entry was removed.
	Delete(key string) (deleted bool)

	// Kind returns the kind of the live entry stored at key.
	Kind(key string) (kind EntryKind)

	// --------------------------------------------------------------------------
	// Maintenance
	// --------------------------------------------------------------------------

	// RemoveExpired scans the whole database and removes every expired scalar.
	// It returns the number of removed entries. Lists never expire.
	RemoveExpired() (removed int)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close stops background work (e.g. the expiry sweep).
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVDBError (code %s): %s", e.Code, e.Msg)
}

// Is makes errors.Is match on the return code, e.g. errors.Is(err, db.ErrKeyAbsent).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new KVDB error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// CodeOf returns the return code carried by err, RetCSuccess for nil
// and RetCInternalError for foreign errors.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// Sentinel errors for use with errors.Is
var (
	ErrKeyAbsent  = NewError(RetCKeyAbsent, "key absent")
	ErrWrongType  = NewError(RetCWrongType, "operation against a key holding the wrong kind of value")
	ErrNotInteger = NewError(RetCNotInteger, "value is not an integer or out of range")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Command executed successfully.
	RetCInternalError                // 1: Command failed due to an internal error.
	RetCKeyAbsent                    // 2: Key is missing or expired.
	RetCWrongType                    // 3: Key holds the wrong kind of entry.
	RetCNotInteger                   // 4: Value is not an integer or out of range.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCKeyAbsent:
		return "KeyAbsent"
	case RetCWrongType:
		return "WrongType"
	case RetCNotInteger:
		return "NotInteger"
	default:
		return "Unknown"
	}
}
