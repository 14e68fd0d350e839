// Package format turns arbitrary runtime values into short display labels
// and classifies them for prop-change reports.
package format

import (
	"encoding/json"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/ethpandaops/renderlab/pkg/event"
)

// MaxLabelLength is the byte length after which labels are truncated.
const MaxLabelLength = 120

const ellipsis = "…"

// Classify returns the coarse kind of v: function for non-nil func values,
// object for non-nil composite values, value for everything else.
func Classify(v any) event.Kind {
	if v == nil {
		return event.KindValue
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Func:
		if rv.IsNil() {
			return event.KindValue
		}

		return event.KindFunction
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan,
		reflect.Interface:
		if rv.IsNil() {
			return event.KindValue
		}

		return event.KindObject
	case reflect.Array, reflect.Struct:
		return event.KindObject
	default:
		return event.KindValue
	}
}

// Labeler hands out stable synthetic labels for callables.
//
// Each entry holds the callable it labels, so a labeled address cannot be
// recycled while the entry exists. Owners pair Retain with Release; the
// entry goes away with the last Release. Callables labeled without an owner
// stay pinned for the life of the Labeler. Label numbers are never reused.
type Labeler struct {
	mu      sync.Mutex
	entries map[uintptr]*labelEntry
	next    uint64
}

type labelEntry struct {
	fn   any // pins the address while labeled
	n    uint64
	refs int
}

// NewLabeler creates an empty Labeler.
func NewLabeler() *Labeler {
	return &Labeler{
		entries: make(map[uintptr]*labelEntry, 16),
	}
}

// Label returns the label of callable fn, assigning the next number on
// first sight. Non-callables return "".
func (l *Labeler) Label(fn any) string {
	if !isCallable(fn) {
		return ""
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return "fn#" + strconv.FormatUint(l.entryLocked(fn).n, 10)
}

// Retain labels callable fn if needed and adds one owner reference to it.
// Non-callables are ignored.
func (l *Labeler) Retain(fn any) {
	if !isCallable(fn) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entryLocked(fn).refs++
}

// Release drops one owner reference to callable fn. The identity is
// forgotten when the last reference goes, and a later sighting of the same
// callable gets a fresh label. Releasing an unowned callable does nothing.
func (l *Labeler) Release(fn any) {
	if !isCallable(fn) {
		return
	}

	id := funcIdentity(fn)

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok || e.refs == 0 {
		return
	}

	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// RetainAll calls Retain for every value of values in key order, so labels
// follow the order in which callables are first observed.
func (l *Labeler) RetainAll(values map[string]any) {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		l.Retain(values[key])
	}
}

// ReleaseAll calls Release for every value of values.
func (l *Labeler) ReleaseAll(values map[string]any) {
	for _, v := range values {
		l.Release(v)
	}
}

// Len returns the number of identities currently held.
func (l *Labeler) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

// Refs returns the number of owner references held for callable fn.
func (l *Labeler) Refs(fn any) int {
	if !isCallable(fn) {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[funcIdentity(fn)]; ok {
		return e.refs
	}

	return 0
}

func (l *Labeler) entryLocked(fn any) *labelEntry {
	id := funcIdentity(fn)

	e, ok := l.entries[id]
	if !ok {
		l.next++
		e = &labelEntry{fn: fn, n: l.next}
		l.entries[id] = e
	}

	return e
}

// Format renders v as a short human-readable label.
func (l *Labeler) Format(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Func:
		if rv.IsNil() {
			return "nil"
		}

		return l.Label(v)
	case reflect.String:
		return truncate(strconv.Quote(rv.String()))
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
	}

	return truncate(serialize(v))
}

var defaultLabeler = NewLabeler()

// Default returns the process-wide Labeler used by Format.
func Default() *Labeler {
	return defaultLabeler
}

// Format renders v with the process-wide Labeler.
func Format(v any) string {
	return defaultLabeler.Format(v)
}

// serialize encodes v as JSON, falling back to a type tag on any failure.
func serialize(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = typeTag(v)
		}
	}()

	data, err := json.Marshal(v)
	if err != nil {
		return typeTag(v)
	}

	return string(data)
}

func typeTag(v any) string {
	return "[" + reflect.TypeOf(v).String() + "]"
}

func truncate(s string) string {
	if len(s) <= MaxLabelLength {
		return s
	}

	cut := MaxLabelLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + ellipsis
}

func isCallable(v any) bool {
	if v == nil {
		return false
	}

	rv := reflect.ValueOf(v)

	return rv.Kind() == reflect.Func && !rv.IsNil()
}
