package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type point struct {
	X, Y float64
	Meta map[string]int
}

func TestCellSuppressesShallowEqualSet(t *testing.T) {
	meta := map[string]int{"a": 1}
	c := NewCell(point{X: 1, Meta: meta})

	var got []point
	c.Subscribe(func(p point) { got = append(got, p) })

	c.Set(point{X: 1, Meta: meta})
	assert.Empty(t, got)

	c.Set(point{X: 1, Meta: map[string]int{"a": 1}})
	assert.Len(t, got, 1, "a new map reference is a change")

	c.Set(point{X: math.NaN(), Meta: got[0].Meta})
	c.Set(point{X: math.NaN(), Meta: got[0].Meta})
	assert.Len(t, got, 2, "NaN equals NaN")
}

func TestCellUnsubscribe(t *testing.T) {
	c := NewCell(0)
	calls := 0
	unsubscribe := c.Subscribe(func(int) { calls++ })

	c.Set(1)
	unsubscribe()
	unsubscribe()
	c.Set(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, c.Get())
	assert.Equal(t, 0, c.subscriberCount())
}

func TestCellReentrantSetKeepsOrder(t *testing.T) {
	c := NewCell(0)
	var first, second []int

	c.Subscribe(func(v int) {
		first = append(first, v)
		if v == 1 {
			c.Set(2)
			assert.Equal(t, 2, c.Get(), "value is visible before delivery")
		}
	})
	c.Subscribe(func(v int) { second = append(second, v) })

	c.Set(1)

	assert.Equal(t, []int{1, 2}, first)
	assert.Equal(t, []int{1, 2}, second)
}

func TestDefinitionNamesAndKinds(t *testing.T) {
	def := counterDefinition().DefineAction("reload")

	assert.Equal(t, []string{"reload", "setCount", "subtract", "tag", "touch"}, def.Names())
	assert.NoError(t, def.Err())

	for name, want := range map[string]Kind{
		"setCount": KindReducer,
		"tag":      KindDraftReducer,
		"subtract": KindEffect,
		"reload":   KindDefinedAction,
	} {
		got, ok := def.Kind(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := def.Kind("nope")
	assert.False(t, ok)
	assert.Equal(t, "draft-reducer", KindDraftReducer.String())
}
