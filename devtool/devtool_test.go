package devtool_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/centraunit/servicex/devtool"
	"github.com/centraunit/servicex/store"
)

type counter struct {
	Count int
}

func TestRecorderKeepsHistoryAndState(t *testing.T) {
	rec := devtool.NewRecorder()

	rec.LogAction("Counter", store.LogEntry{Action: "subtract/->Counter/setCount", Params: -3})
	rec.LogAction("Counter", store.LogEntry{Action: "setCount", Params: -3, State: counter{Count: -3}, HasState: true})
	rec.LogAction("Engine", store.LogEntry{Action: "setSpeed", Params: 10, State: counter{Count: 10}, HasState: true})

	assert.Equal(t, []string{
		"Counter/subtract/->Counter/setCount",
		"Counter/setCount",
		"Engine/setSpeed",
	}, rec.Types())
	assert.Equal(t, -3, rec.Records()[0].Params)

	st, ok := rec.State("Counter")
	require.True(t, ok)
	assert.Equal(t, counter{Count: -3}, st)

	_, ok = rec.State("Missing")
	assert.False(t, ok)

	rec.Reset()
	assert.Empty(t, rec.Records())
	_, ok = rec.State("Counter")
	assert.False(t, ok)
}

func TestRecorderHistoryLimit(t *testing.T) {
	rec := devtool.NewRecorder(devtool.WithHistoryLimit(2))
	for _, a := range []string{"a", "b", "c"} {
		rec.LogAction("S", store.LogEntry{Action: a})
	}
	assert.Equal(t, []string{"S/b", "S/c"}, rec.Types())
}

func TestRecorderSnapshot(t *testing.T) {
	rec := devtool.NewRecorder()
	rec.LogAction("Counter", store.LogEntry{Action: "setCount", State: counter{Count: 7}, HasState: true})
	rec.LogAction("Engine", store.LogEntry{Action: "setSpeed", State: counter{Count: 3}, HasState: true})

	out, err := rec.Snapshot()
	require.NoError(t, err)

	var decoded map[string]map[string]int
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, map[string]map[string]int{
		"Counter": {"count": 7},
		"Engine":  {"count": 3},
	}, decoded)
}

func TestSlogSinkAndMulti(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rec := devtool.NewRecorder()

	sink := devtool.Multi(rec, nil, devtool.NewSlogSink(logger))
	sink.LogAction("Counter", store.LogEntry{Action: "setCount", Params: 1, State: counter{Count: 1}, HasState: true})

	assert.Equal(t, []string{"Counter/setCount"}, rec.Types())
	assert.Contains(t, buf.String(), "store=Counter")
	assert.Contains(t, buf.String(), "action=setCount")
}

func TestMultiSurvivesPanickingSink(t *testing.T) {
	rec := devtool.NewRecorder()
	calls := 0
	sink := devtool.Multi(
		store.SinkFunc(func(string, store.LogEntry) { panic("broken sink") }),
		rec,
		store.SinkFunc(func(string, store.LogEntry) { calls++ }),
	)

	assert.NotPanics(t, func() {
		sink.LogAction("Counter", store.LogEntry{Action: "setCount", Params: 1})
		sink.LogAction("Counter", store.LogEntry{Action: "setCount", Params: 2})
	})
	assert.Equal(t, []string{"Counter/setCount", "Counter/setCount"}, rec.Types())
	assert.Equal(t, 2, calls)
}

func TestRecorderWiredIntoStore(t *testing.T) {
	rec := devtool.NewRecorder()
	def := store.Define("Counter", counter{}).
		Reducer("setCount", func(_ counter, p any) counter { return counter{Count: p.(int)} })
	st, err := store.NewStore(def, store.WithSink(rec))
	require.NoError(t, err)
	defer st.Destroy()

	require.NoError(t, st.Dispatch("setCount", 4))

	assert.Equal(t, []string{"Counter/setCount"}, rec.Types())
	state, _ := rec.State("Counter")
	assert.Equal(t, counter{Count: 4}, state)
}
