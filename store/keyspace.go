// Package store's Keyspace ties the hash table, hash values, and
// sorted-set values together behind the WRONGTYPE policy and the
// integer arithmetic INCR/DECR need, matching spec.md §4.C.
package store

import (
	"strconv"

	"github.com/pkg/errors"
)

// ErrNotInteger is returned by the INCR/DECR family when the existing
// string value is not a canonical signed 64-bit decimal integer.
var ErrNotInteger = errors.New("store: value is not an integer")

// Keyspace is the top-level entry table: every key in the cache
// resolves to exactly one *Entry here, regardless of which Value tag
// it currently holds.
type Keyspace struct {
	entries *Table[*Entry]
}

// NewKeyspace creates an empty keyspace.
func NewKeyspace() *Keyspace {
	return &Keyspace{entries: NewTable[*Entry]()}
}

// Get returns the raw entry for name, if present.
func (k *Keyspace) Get(name string) (*Entry, bool) {
	return k.entries.Get(name)
}

// Exists reports whether name currently has a live entry.
func (k *Keyspace) Exists(name string) bool {
	return k.entries.Has(name)
}

// Delete removes name's entry, regardless of its tag. Returns whether
// anything was removed. Callers are responsible for also canceling
// any scheduled TTL for name.
func (k *Keyspace) Delete(name string) bool {
	return k.entries.Delete(name)
}

// Len returns the number of live keys.
func (k *Keyspace) Len() int {
	return k.entries.Len()
}

// Keys returns every key whose name matches pattern (spec.md §4.F
// glob semantics).
func (k *Keyspace) Keys(pattern string) []string {
	var out []string
	k.entries.Each(func(key string, _ *Entry) {
		if MatchGlob(pattern, key) {
			out = append(out, key)
		}
	})
	return out
}

// RehashingInfo reports whether the top-level entry table is
// currently mid-progressive-rehash, for the INFO command.
func (k *Keyspace) RehashingInfo() bool {
	inProgress, _, _ := k.entries.Rehashing()
	return inProgress
}

// LoadFactor returns the top-level entry table's current load
// factor, for the INFO command.
func (k *Keyspace) LoadFactor() float64 {
	return k.entries.LoadFactor()
}

// Each visits every live entry. visit must not mutate the keyspace.
func (k *Keyspace) Each(visit func(name string, e *Entry)) {
	k.entries.Each(func(key string, e *Entry) {
		visit(key, e)
	})
}

func (k *Keyspace) expect(name string, want Tag) (*Entry, error) {
	e, ok := k.entries.Get(name)
	if !ok {
		return nil, nil
	}
	if e.Value.Tag != want {
		return nil, &WrongTypeError{Key: name, Have: e.Value.Tag, Expected: want}
	}
	return e, nil
}

// --- String ---

// GetString returns name's string value. ok is false if absent; err
// is non-nil on WRONGTYPE.
func (k *Keyspace) GetString(name string) (value string, ok bool, err error) {
	e, err := k.expect(name, TagString)
	if err != nil || e == nil {
		return "", false, err
	}
	return e.Value.Str, true, nil
}

// SetString creates or overwrites name as a String entry, discarding
// any previous value regardless of its tag (spec.md's SET always
// succeeds and never raises WRONGTYPE). Returns whether this created a
// new key.
func (k *Keyspace) SetString(name, value string) (created bool) {
	return k.entries.Set(name, &Entry{Name: name, Value: NewStringValue(value)})
}

// IncrBy applies delta to name's integer string value, creating the
// key at 0 first if absent. Returns WRONGTYPE if name holds a
// non-string value, or ErrNotInteger if the existing string is not a
// canonical signed decimal integer.
func (k *Keyspace) IncrBy(name string, delta int64) (int64, error) {
	e, err := k.expect(name, TagString)
	if err != nil {
		return 0, err
	}
	var current int64
	if e != nil {
		parsed, perr := strconv.ParseInt(e.Value.Str, 10, 64)
		if perr != nil || strconv.FormatInt(parsed, 10) != e.Value.Str {
			return 0, ErrNotInteger
		}
		current = parsed
	}
	next := current + delta
	k.entries.Set(name, &Entry{Name: name, Value: NewStringValue(strconv.FormatInt(next, 10))})
	return next, nil
}

// --- Hash ---

func (k *Keyspace) hashEntry(name string, createIfAbsent bool) (*Entry, error) {
	e, err := k.expect(name, TagHash)
	if err != nil {
		return nil, err
	}
	if e == nil && createIfAbsent {
		e = &Entry{Name: name, Value: NewHashValue()}
		k.entries.Set(name, e)
	}
	return e, nil
}

// HGet returns field's value within name's hash.
func (k *Keyspace) HGet(name, field string) (value string, ok bool, err error) {
	e, err := k.hashEntry(name, false)
	if err != nil || e == nil {
		return "", false, err
	}
	value, ok = e.Value.Hash.Get(field)
	return value, ok, nil
}

// HSet sets field within name's hash, creating the hash if absent.
// Returns whether field was newly created.
func (k *Keyspace) HSet(name, field, value string) (created bool, err error) {
	e, err := k.hashEntry(name, true)
	if err != nil {
		return false, err
	}
	return e.Value.Hash.Set(field, value), nil
}

// HDel removes field from name's hash. Returns whether it was
// present. A hash left empty by the last HDel still exists as an
// empty hash (spec.md does not require auto-deleting empty
// containers).
func (k *Keyspace) HDel(name, field string) (removed bool, err error) {
	e, err := k.hashEntry(name, false)
	if err != nil || e == nil {
		return false, err
	}
	return e.Value.Hash.Delete(field), nil
}

// HExists reports whether field is present in name's hash.
func (k *Keyspace) HExists(name, field string) (bool, error) {
	e, err := k.hashEntry(name, false)
	if err != nil || e == nil {
		return false, err
	}
	return e.Value.Hash.Has(field), nil
}

// HGetAll returns every field/value pair in name's hash.
func (k *Keyspace) HGetAll(name string) (map[string]string, error) {
	e, err := k.hashEntry(name, false)
	if err != nil || e == nil {
		return nil, err
	}
	out := map[string]string{}
	e.Value.Hash.Each(func(field, value string) {
		out[field] = value
	})
	return out, nil
}

// --- Sorted set ---

func (k *Keyspace) zsetEntry(name string, createIfAbsent bool) (*Entry, error) {
	e, err := k.expect(name, TagSortedSet)
	if err != nil {
		return nil, err
	}
	if e == nil && createIfAbsent {
		e = &Entry{Name: name, Value: NewSortedSetValue()}
		k.entries.Set(name, e)
	}
	return e, nil
}

// ZAdd adds or updates member within name's sorted set, creating the
// set if absent.
func (k *Keyspace) ZAdd(name, member string, score float64) (created bool, err error) {
	e, err := k.zsetEntry(name, true)
	if err != nil {
		return false, err
	}
	return e.Value.ZSet.Add(member, score)
}

// ZRem removes member from name's sorted set. Returns whether it was
// present.
func (k *Keyspace) ZRem(name, member string) (removed bool, err error) {
	e, err := k.zsetEntry(name, false)
	if err != nil || e == nil {
		return false, err
	}
	return e.Value.ZSet.Remove(member), nil
}

// ZScore returns member's score within name's sorted set.
func (k *Keyspace) ZScore(name, member string) (score float64, ok bool, err error) {
	e, err := k.zsetEntry(name, false)
	if err != nil || e == nil {
		return 0, false, err
	}
	score, ok = e.Value.ZSet.Score(member)
	return score, ok, nil
}

// ZQuery runs the seek-then-walk range query over name's sorted set.
func (k *Keyspace) ZQuery(name string, score float64, member string, offset, limit int) ([]Pair, error) {
	e, err := k.zsetEntry(name, false)
	if err != nil || e == nil {
		return nil, err
	}
	return e.Value.ZSet.Query(score, member, offset, limit), nil
}
