package format

import (
	"math"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/renderlab/pkg/event"
)

type point struct {
	X, Y int
}

type node struct {
	Next *node
}

type withFunc struct {
	OnClick func()
}

func newHandler(n int) func() int {
	return func() int { return n }
}

func TestClassify(t *testing.T) {
	var nilMap map[string]int

	var nilPtr *point

	var nilFunc func()

	tests := []struct {
		name  string
		value any
		want  event.Kind
	}{
		{name: "nil", value: nil, want: event.KindValue},
		{name: "int", value: 42, want: event.KindValue},
		{name: "string", value: "a", want: event.KindValue},
		{name: "bool", value: true, want: event.KindValue},
		{name: "float nan", value: math.NaN(), want: event.KindValue},
		{name: "func", value: newHandler(1), want: event.KindFunction},
		{name: "nil func", value: nilFunc, want: event.KindValue},
		{name: "map", value: map[string]int{"a": 1}, want: event.KindObject},
		{name: "nil map", value: nilMap, want: event.KindValue},
		{name: "slice", value: []int{1}, want: event.KindObject},
		{name: "struct", value: point{1, 2}, want: event.KindObject},
		{name: "pointer", value: &point{}, want: event.KindObject},
		{name: "nil pointer", value: nilPtr, want: event.KindValue},
		{name: "array", value: [2]int{}, want: event.KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value))
		})
	}
}

func TestLabeler_Format(t *testing.T) {
	l := NewLabeler()

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "int", value: 42, want: "42"},
		{name: "negative int", value: int64(-7), want: "-7"},
		{name: "uint", value: uint8(9), want: "9"},
		{name: "float", value: 1.5, want: "1.5"},
		{name: "nan", value: math.NaN(), want: "NaN"},
		{name: "negative zero", value: math.Copysign(0, -1), want: "-0"},
		{name: "string", value: "a", want: `"a"`},
		{name: "string with quote", value: `say "hi"`, want: `"say \"hi\""`},
		{name: "bool", value: false, want: "false"},
		{name: "nil", value: nil, want: "nil"},
		{name: "map", value: map[string]int{"a": 1}, want: `{"a":1}`},
		{name: "slice", value: []string{"x", "y"}, want: `["x","y"]`},
		{name: "struct", value: point{X: 1, Y: 2}, want: `{"X":1,"Y":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Format(tt.value))
		})
	}
}

func TestLabeler_FormatCallables(t *testing.T) {
	l := NewLabeler()

	fnA := newHandler(1)
	fnB := newHandler(2)

	labelA := l.Format(fnA)
	labelB := l.Format(fnB)

	assert.NotEqual(t, labelA, labelB)
	assert.Equal(t, labelA, l.Format(fnA), "same callable must keep its label")
	assert.Equal(t, "fn#1", labelA)
	assert.Equal(t, "fn#2", labelB)
	assert.Equal(t, 2, l.Len())
}

func TestLabeler_ReleaseNeverReusesNumbers(t *testing.T) {
	l := NewLabeler()

	fnA := newHandler(1)
	l.Retain(fnA)
	assert.Equal(t, "fn#1", l.Label(fnA))

	l.Release(fnA)
	assert.Equal(t, 0, l.Len())

	// The same callable is now unknown and gets a fresh number.
	assert.Equal(t, "fn#2", l.Label(fnA))
}

func TestLabeler_RetainCountsOwners(t *testing.T) {
	l := NewLabeler()

	fn := newHandler(1)
	l.Retain(fn)
	l.Retain(fn)
	assert.Equal(t, 2, l.Refs(fn))

	l.Release(fn)
	assert.Equal(t, "fn#1", l.Label(fn), "label survives while an owner remains")
	assert.Equal(t, 1, l.Refs(fn))

	l.Release(fn)
	assert.Equal(t, 0, l.Len())

	// Extra releases are ignored.
	l.Release(fn)
	assert.Equal(t, 0, l.Len())
}

func TestLabeler_ReleaseKeepsUnownedLabels(t *testing.T) {
	l := NewLabeler()

	fn := newHandler(1)
	assert.Equal(t, "fn#1", l.Label(fn))

	l.Release(fn)
	assert.Equal(t, "fn#1", l.Label(fn))
	assert.Equal(t, 1, l.Len())
}

func TestLabeler_RetainAllLabelsInKeyOrder(t *testing.T) {
	l := NewLabeler()

	values := map[string]any{
		"onZoom":  newHandler(1),
		"onApply": newHandler(2),
		"count":   3,
	}

	l.RetainAll(values)
	assert.Equal(t, "fn#1", l.Label(values["onApply"]))
	assert.Equal(t, "fn#2", l.Label(values["onZoom"]))

	l.ReleaseAll(values)
	assert.Equal(t, 0, l.Len())
}

func TestLabeler_UniqueUnderCollection(t *testing.T) {
	const total = 5000

	l := NewLabeler()
	labels := make(map[string]struct{}, total)

	for i := range total {
		labels[l.Format(newHandler(i))] = struct{}{}

		if i%100 == 0 {
			runtime.GC()
		}
	}

	assert.Len(t, labels, total, "every distinct callable gets its own label")
	assert.Equal(t, total, l.Len())
}

func TestLabeler_ReleasedAddressesGetFreshLabels(t *testing.T) {
	const total = 5000

	l := NewLabeler()
	labels := make(map[string]struct{}, total)

	var prev any

	for i := range total {
		fn := newHandler(i)
		l.Retain(fn)
		labels[l.Label(fn)] = struct{}{}

		if prev != nil {
			l.Release(prev)
		}

		prev = fn

		if i%100 == 0 {
			runtime.GC()
		}
	}

	assert.Len(t, labels, total)
	assert.Equal(t, 1, l.Len(), "only the current owner's callable is held")
}

func TestLabeler_LabelIgnoresNonCallables(t *testing.T) {
	l := NewLabeler()

	assert.Empty(t, l.Label(42))
	assert.Empty(t, l.Label(nil))

	l.Retain("not a func")
	l.Release("not a func")
	assert.Equal(t, 0, l.Len())
	assert.Zero(t, l.Refs(42))
}

func TestLabeler_FormatFallsBackOnSerializationFailure(t *testing.T) {
	l := NewLabeler()

	cyclic := &node{}
	cyclic.Next = cyclic

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "cycle", value: cyclic, want: "[*format.node]"},
		{name: "chan", value: make(chan int), want: "[chan int]"},
		{name: "nested func", value: withFunc{OnClick: func() {}}, want: "[format.withFunc]"},
		{name: "nan in map", value: map[string]float64{"x": math.NaN()}, want: "[map[string]float64]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				assert.Equal(t, tt.want, l.Format(tt.value))
			})
		})
	}
}

func TestLabeler_FormatTruncates(t *testing.T) {
	l := NewLabeler()

	out := l.Format(strings.Repeat("é", 200))

	assert.LessOrEqual(t, len(out), MaxLabelLength+len(ellipsis))
	assert.True(t, strings.HasSuffix(out, ellipsis))
	assert.True(t, strings.HasPrefix(out, `"é`))
}

func TestFormat_DefaultLabelerIsStable(t *testing.T) {
	fn := newHandler(3)

	assert.Equal(t, Format(fn), Format(fn))
	assert.Equal(t, Default().Label(fn), Format(fn))
}
