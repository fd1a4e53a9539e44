package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestAggregator_RegisterOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register(fixed("cache", Healthy("ok")))
	agg.Register(fixed("render", Healthy("ok")))
	agg.Register(fixed("cache", Degraded("replaced")))

	require.Equal(t, []string{"cache", "render"}, agg.CheckerNames())

	r, err := agg.Check(context.Background(), "cache")
	require.NoError(t, err)
	assert.Equal(t, "replaced", r.Message)

	agg.Unregister("cache")
	assert.Equal(t, []string{"render"}, agg.CheckerNames())
}

func TestAggregator_CheckUnknown(t *testing.T) {
	_, err := NewAggregator().Check(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCheckerNotFound)
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register(fixed("a", Healthy("ok")))
	agg.Register(fixed("b", Degraded("slow")))

	results := agg.CheckAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, StatusDegraded, results["b"].Status)
	assert.GreaterOrEqual(t, results["a"].Duration, time.Duration(0))
	assert.Equal(t, StatusDegraded, OverallStatus(results))
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(20 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	agg.Register(NewCheckerFunc("stuck", func(context.Context) Result {
		<-release
		return Healthy("late")
	}))

	r := agg.CheckAll(context.Background())["stuck"]
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.ErrorIs(t, r.Error, ErrCheckTimeout)
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{name: "empty", results: nil, want: StatusHealthy},
		{name: "all healthy", results: map[string]Result{"a": Healthy(""), "b": Healthy("")}, want: StatusHealthy},
		{name: "one degraded", results: map[string]Result{"a": Healthy(""), "b": Degraded("")}, want: StatusDegraded},
		{name: "unhealthy wins", results: map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverallStatus(tt.results))
		})
	}
}
