package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeAlert(conditions ...Condition) *Alert {
	return &Alert{
		ID:              "alert-1",
		Name:            "high cpu",
		DeviceID:        "dev-1",
		Conditions:      conditions,
		DurationMinutes: 5,
		IsActive:        true,
	}
}

func TestCondition_Validate(t *testing.T) {
	assert.NoError(t, Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 90}.Validate())
	assert.NoError(t, Condition{Metric: MetricTemperature, Operator: OpLessEqual, Value: -50}.Validate())
	assert.NoError(t, Condition{Metric: MetricDNSLatency, Operator: OpGreaterEqual, Value: 10000}.Validate())
	assert.NoError(t, Condition{Metric: MetricConnectivity, Operator: OpEqual, Value: 0}.Validate())

	assert.Error(t, Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 101}.Validate())
	assert.Error(t, Condition{Metric: MetricTemperature, Operator: OpGreater, Value: 151}.Validate())
	assert.Error(t, Condition{Metric: MetricDNSLatency, Operator: OpGreater, Value: -1}.Validate())
	assert.Error(t, Condition{Metric: MetricConnectivity, Operator: OpEqual, Value: 0.5}.Validate())
	assert.Error(t, Condition{Metric: "load_average", Operator: OpGreater, Value: 1}.Validate())
	assert.Error(t, Condition{Metric: MetricCPUUsage, Operator: "~", Value: 1}.Validate())
}

func TestAlert_ValidateDefinition(t *testing.T) {
	a := activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 90})
	assert.NoError(t, a.ValidateDefinition())

	empty := activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 90})
	empty.Name = "   "
	assert.Error(t, empty.ValidateDefinition())

	none := activeAlert()
	assert.Error(t, none.ValidateDefinition())

	tooLong := activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 90})
	tooLong.DurationMinutes = 1441
	assert.Error(t, tooLong.ValidateDefinition())
}

func TestAlert_EvaluateConditions_AllMustHold(t *testing.T) {
	a := activeAlert(
		Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80},
		Condition{Metric: MetricTemperature, Operator: OpGreaterEqual, Value: 60},
	)

	assert.True(t, a.EvaluateConditions(map[string]float64{"cpu_usage": 85, "temperature": 60}))
	assert.False(t, a.EvaluateConditions(map[string]float64{"cpu_usage": 85, "temperature": 59}))
	assert.False(t, a.EvaluateConditions(map[string]float64{"cpu_usage": 80, "temperature": 60}))
}

func TestAlert_EvaluateConditions_InactiveNeverFires(t *testing.T) {
	a := activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 0})
	a.IsActive = false
	assert.False(t, a.EvaluateConditions(map[string]float64{"cpu_usage": 99}))
}

func TestAlert_EvaluateConditions_AbsentMetricIsVacuouslySatisfied(t *testing.T) {
	a := activeAlert(
		Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80},
		Condition{Metric: MetricDNSLatency, Operator: OpGreater, Value: 500},
	)

	// dns_latency missing from the payload: the condition is skipped, not failed.
	assert.True(t, a.EvaluateConditions(map[string]float64{"cpu_usage": 90}))

	// A payload missing every referenced metric satisfies all conditions vacuously.
	assert.True(t, a.EvaluateConditions(map[string]float64{"ram_usage": 10}))
}

func TestAlert_EvaluateConditions_AllOperators(t *testing.T) {
	cases := []struct {
		op      Operator
		value   float64
		current float64
		want    bool
	}{
		{OpGreater, 50, 51, true},
		{OpGreater, 50, 50, false},
		{OpGreaterEqual, 50, 50, true},
		{OpLess, 50, 49, true},
		{OpLess, 50, 50, false},
		{OpLessEqual, 50, 50, true},
		{OpEqual, 50, 50, true},
		{OpEqual, 50, 51, false},
		{OpNotEqual, 50, 51, true},
		{OpNotEqual, 50, 50, false},
	}
	for _, tc := range cases {
		a := activeAlert(Condition{Metric: MetricCPUUsage, Operator: tc.op, Value: tc.value})
		got := a.EvaluateConditions(map[string]float64{"cpu_usage": tc.current})
		assert.Equal(t, tc.want, got, "cpu_usage %v %s %v", tc.current, tc.op, tc.value)
	}
}

func TestAlert_TriggerAndDebounceWindow(t *testing.T) {
	a := activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80})

	assert.False(t, a.IsTriggered(time.Now().UTC()))

	a.Trigger()
	require.NotNil(t, a.LastTriggered)
	assert.Equal(t, 1, a.TriggerCount)
	assert.True(t, a.IsTriggered(time.Now().UTC()))

	// Inside the window at +4m59s, outside at +5m.
	assert.True(t, a.IsTriggered(a.LastTriggered.Add(5*time.Minute-time.Second)))
	assert.False(t, a.IsTriggered(a.LastTriggered.Add(5*time.Minute)))
}

func TestAlert_RepeatTriggerKeepsIncrementingCount(t *testing.T) {
	a := activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80})
	a.Trigger()
	a.Trigger()
	a.Trigger()
	assert.Equal(t, 3, a.TriggerCount)
}

func TestAlert_ResetClearsTriggerButKeepsCount(t *testing.T) {
	a := activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80})
	a.Trigger()
	a.Trigger()

	a.Reset()
	assert.Nil(t, a.LastTriggered)
	assert.False(t, a.IsTriggered(time.Now().UTC()))
	assert.Equal(t, 2, a.TriggerCount)
}

func TestAlert_ConditionsSummary(t *testing.T) {
	a := activeAlert(
		Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80},
		Condition{Metric: MetricConnectivity, Operator: OpEqual, Value: 0},
	)
	assert.Equal(t, "cpu_usage > 80 AND connectivity == 0", a.ConditionsSummary())

	bare := &Alert{}
	assert.Equal(t, "No conditions defined", bare.ConditionsSummary())
}
