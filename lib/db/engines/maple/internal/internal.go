package internal

import (
	"github.com/ValentinKolb/respkv/lib/db"
	"github.com/edwingeng/deque/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"time"
)

// --------------------------------------------------------------------------
// Entry Type (value stored under a key)
// --------------------------------------------------------------------------

// Entry is either a scalar (Value, optional ExpireAt) or a list (List != nil).
// Entries are replaced, never modified, outside of MapOf.Compute. The only
// exception is the list deque, which is mutated in place but only ever
// touched from inside Compute for its own key.
type Entry struct {
	Value    []byte                // Scalar payload
	ExpireAt time.Time             // Absolute expiry (zero = no expiry), scalars only
	List     *deque.Deque[[]byte] // List payload (nil for scalars)
}

// NewScalar creates a scalar entry holding a private copy of value.
func NewScalar(value []byte, expireAt time.Time) Entry {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	return Entry{Value: valueCopy, ExpireAt: expireAt}
}

// NewList creates an entry holding an empty list.
func NewList() Entry {
	return Entry{List: deque.NewDeque[[]byte]()}
}

// IsList returns whether the entry is a list
func (e Entry) IsList() bool {
	return e.List != nil
}

// Kind returns the kind of the entry
func (e Entry) Kind() db.EntryKind {
	if e.IsList() {
		return db.KindList
	}
	return db.KindScalar
}

// IsExpired returns whether the entry is expired at the given instant.
// Lists never expire.
func (e Entry) IsExpired(now time.Time) bool {
	return !e.IsList() && !e.ExpireAt.IsZero() && !now.Before(e.ExpireAt)
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of entries
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}
