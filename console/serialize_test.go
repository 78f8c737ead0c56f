package console

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type explosive struct{}

func (explosive) LogValue() slog.Value {
	panic("boom")
}

type node struct {
	Name string
	Next *node
}

type tagged struct {
	A      int    `json:"a"`
	B      string `json:"-"`
	hidden int
	D      *int
	E      string `json:",omitempty"`
}

type code int

type detailedError struct{}

func (detailedError) Error() string { return "detailed" }

func (e detailedError) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('+') {
		_, _ = fmt.Fprint(f, "detailed\nat somewhere.go:10")
		return
	}
	_, _ = fmt.Fprint(f, e.Error())
}

func TestSerialize(t *testing.T) {
	fixedTime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		give any
		want any
	}{
		{name: "nil", give: nil, want: nil},
		{name: "string", give: "a", want: "a"},
		{name: "int", give: 42, want: 42},
		{name: "bool", give: true, want: true},
		{name: "float", give: 1.5, want: 1.5},
		{name: "NaN", give: math.NaN(), want: "NaN"},
		{name: "negative infinity", give: math.Inf(-1), want: "-Inf"},
		{name: "named string", give: LevelWarn, want: "warn"},
		{name: "named int", give: code(7), want: int64(7)},
		{name: "typed nil pointer", give: (*node)(nil), want: nil},
		{name: "function", give: strings.ToUpper, want: "[Function strings.ToUpper]"},
		{name: "closure", give: func() {}, want: "[Function anonymous]"},
		{
			name: "error",
			give: errors.New("nope"),
			want: map[string]any{"name": "errors.errorString", "message": "nope"},
		},
		{
			name: "error with details",
			give: detailedError{},
			want: map[string]any{
				"name":    "console.detailedError",
				"message": "detailed",
				"stack":   "detailed\nat somewhere.go:10",
			},
		},
		{name: "text marshaler", give: fixedTime, want: "2024-01-02T03:04:05Z"},
		{name: "stringer", give: 1500 * time.Millisecond, want: "1.5s"},
		{name: "bytes", give: []byte("hi"), want: "hi"},
		{name: "binary bytes", give: []byte{0xff}, want: "/w=="},
		{name: "array", give: [2]int{1, 2}, want: []any{1, 2}},
		{name: "slice", give: []string{"a", "b"}, want: []any{"a", "b"}},
		{name: "map", give: map[int]string{1: "a"}, want: map[string]any{"1": "a"}},
		{
			name: "struct",
			give: tagged{A: 1, B: "skipped", hidden: 2},
			want: map[string]any{"a": 1, "D": nil, "E": ""},
		},
		{
			name: "slog group",
			give: slog.GroupValue(slog.Int("a", 1), slog.Group("g", slog.String("b", "c"))),
			want: map[string]any{"a": int64(1), "g": map[string]any{"b": "c"}},
		},
		{name: "panicking log valuer", give: explosive{}, want: UnserializableMarker},
		{name: "channel", give: make(chan int), want: "[chan int]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Serialize(tt.give))
		})
	}
}

func TestSerializeCircular(t *testing.T) {
	t.Run("self pointer", func(t *testing.T) {
		n := &node{Name: "a"}
		n.Next = n
		assert.Equal(t, map[string]any{"Name": "a", "Next": CircularMarker}, Serialize(n))
	})

	t.Run("self map", func(t *testing.T) {
		m := map[string]any{"k": 1}
		m["self"] = m
		assert.Equal(t, map[string]any{"k": 1, "self": CircularMarker}, Serialize(m))
	})

	t.Run("self slice", func(t *testing.T) {
		s := make([]any, 2)
		s[0] = "x"
		s[1] = s
		assert.Equal(t, []any{"x", CircularMarker}, Serialize(s))
	})

	t.Run("repeated value", func(t *testing.T) {
		n := &node{Name: "a"}
		assert.Equal(t, []any{map[string]any{"Name": "a", "Next": nil}, CircularMarker}, Serialize([]any{n, n}))
	})

	t.Run("any depth", func(t *testing.T) {
		for depth := 1; depth <= 20; depth++ {
			head := &node{Name: "0"}
			tail := head
			for i := 1; i < depth; i++ {
				tail.Next = &node{Name: fmt.Sprint(i)}
				tail = tail.Next
			}
			tail.Next = head

			got := Serialize(head)
			for i := 0; i < depth; i++ {
				m, ok := got.(map[string]any)
				require.True(t, ok, "depth %d, level %d", depth, i)
				assert.Equal(t, fmt.Sprint(i), m["Name"])
				got = m["Next"]
			}
			assert.Equal(t, CircularMarker, got, "depth %d", depth)
		}
	})
}

func TestSerializeZeroSizePointers(t *testing.T) {
	type empty struct{}
	a, b := &empty{}, &empty{}

	assert.Equal(t, []any{map[string]any{}, map[string]any{}}, Serialize([]any{a, b}))
	assert.Equal(t, []any{map[string]any{}, map[string]any{}}, Serialize([]any{a, a}))
}

func TestSerializeMapKeys(t *testing.T) {
	t.Run("formatted", func(t *testing.T) {
		assert.Equal(t, map[string]any{"1": "a", "true": "b"}, Serialize(map[any]any{1: "a", true: "b"}))
	})

	t.Run("formatted the same", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			assert.Equal(t, map[string]any{
				"1 (int)":    "a",
				"1 (string)": "b",
				"2":          "c",
			}, Serialize(map[any]any{1: "a", "1": "b", 2: "c"}))
		}
	})
}

func TestSerializeUnserializableKey(t *testing.T) {
	got := Serialize(map[string]any{
		"bad":  explosive{},
		"ok":   1,
		"deep": []any{explosive{}, "fine"},
	})

	assert.Equal(t, map[string]any{
		"bad":  UnserializableMarker,
		"ok":   1,
		"deep": []any{UnserializableMarker, "fine"},
	}, got)
}

func TestSerializeAttrs(t *testing.T) {
	got := serializeAttrs([]slog.Attr{
		slog.String("k1", "v1"),
		{},
		slog.Group("empty"),
		slog.Group("", slog.Int("inlined", 1)),
		slog.Group("level1", slog.Group("level2", slog.Any("bad", explosive{}))),
	})

	assert.Equal(t, map[string]any{
		"k1":      "v1",
		"inlined": int64(1),
		"level1": map[string]any{
			"level2": map[string]any{"bad": UnserializableMarker},
		},
	}, got)
}
