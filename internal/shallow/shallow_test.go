package shallow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type inner struct{ N int }

type state struct {
	Name  string
	Count int
	Ratio float64
	Items []int
	Ref   *inner
	Any   any
	priv  int
}

func TestEqual(t *testing.T) {
	items := []int{1, 2}
	ref := &inner{N: 1}
	base := state{Name: "a", Count: 1, Ratio: math.NaN(), Items: items, Ref: ref, Any: 3, priv: 1}

	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"same struct", base, base, true},
		{"copied struct", base, func() state { c := base; return c }(), true},
		{"scalar changed", base, func() state { c := base; c.Count = 2; return c }(), false},
		{"unexported changed", base, func() state { c := base; c.priv = 2; return c }(), false},
		{"new slice same content", base, func() state { c := base; c.Items = []int{1, 2}; return c }(), false},
		{"new pointer same content", base, func() state { c := base; c.Ref = &inner{N: 1}; return c }(), false},
		{"interface value equal", base, func() state { c := base; c.Any = 3; return c }(), true},
		{"interface type differs", base, func() state { c := base; c.Any = int64(3); return c }(), false},
		{"pointers to equal structs", &state{Items: items}, &state{Items: items}, true},
		{"maps with same entries", map[string]*inner{"x": ref}, map[string]*inner{"x": ref}, true},
		{"maps with different entries", map[string]int{"x": 1}, map[string]int{"x": 2}, false},
		{"maps with different keys", map[string]int{"x": 1}, map[string]int{"y": 1}, false},
		{"NaN scalars", math.NaN(), math.NaN(), true},
		{"different types", 1, int64(1), false},
		{"nil and nil", nil, nil, true},
		{"nil and value", nil, 1, false},
		{"strings", "a", "a", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Equal(tc.a, tc.b))
		})
	}
}
