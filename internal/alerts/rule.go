package alerts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinConditions       = 1
	MaxConditions       = 5
	MinDurationMinutes  = 1
	MaxDurationMinutes  = 1440
	DefaultDurationMins = 5
)

var (
	ErrAlertNotFound  = errors.New("alert not found")
	ErrDeviceNotFound = errors.New("device not found")
)

// Metric names a heartbeat field a condition can reference.
type Metric string

const (
	MetricCPUUsage      Metric = "cpu_usage"
	MetricRAMUsage      Metric = "ram_usage"
	MetricTemperature   Metric = "temperature"
	MetricFreeDiskSpace Metric = "free_disk_space"
	MetricDNSLatency    Metric = "dns_latency"
	MetricConnectivity  Metric = "connectivity"
	MetricHealthScore   Metric = "health_score"
)

// Operator is one of the six comparison operators a condition may use.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

// Condition is a single metric threshold. Conditions on an alert are
// conjunctive: all of them must hold for the alert to fire.
type Condition struct {
	Metric   Metric   `json:"metric"`
	Operator Operator `json:"operator"`
	Value    float64  `json:"value"`
}

// Validate checks the metric and operator enums and the per-metric value range.
func (c Condition) Validate() error {
	switch c.Operator {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual, OpNotEqual:
	default:
		return fmt.Errorf("unknown operator %q", c.Operator)
	}

	switch c.Metric {
	case MetricCPUUsage, MetricRAMUsage, MetricFreeDiskSpace, MetricHealthScore:
		if c.Value < 0 || c.Value > 100 {
			return fmt.Errorf("%s value must be between 0 and 100, got %v", c.Metric, c.Value)
		}
	case MetricTemperature:
		if c.Value < -50 || c.Value > 150 {
			return fmt.Errorf("temperature value must be between -50 and 150, got %v", c.Value)
		}
	case MetricDNSLatency:
		if c.Value < 0 || c.Value > 10000 {
			return fmt.Errorf("dns_latency value must be between 0 and 10000, got %v", c.Value)
		}
	case MetricConnectivity:
		if c.Value != 0 && c.Value != 1 {
			return fmt.Errorf("connectivity value must be 0 or 1, got %v", c.Value)
		}
	default:
		return fmt.Errorf("unknown metric %q", c.Metric)
	}
	return nil
}

func (c Condition) holds(current float64) bool {
	switch c.Operator {
	case OpGreater:
		return current > c.Value
	case OpGreaterEqual:
		return current >= c.Value
	case OpLess:
		return current < c.Value
	case OpLessEqual:
		return current <= c.Value
	case OpEqual:
		return current == c.Value
	case OpNotEqual:
		return current != c.Value
	}
	return false
}

// Alert is a user-defined threshold rule attached to one device.
type Alert struct {
	ID              string
	Name            string
	Description     string
	DeviceID        string
	Conditions      []Condition
	DurationMinutes int
	IsActive        bool
	LastTriggered   *time.Time
	TriggerCount    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateDefinition checks the user-editable parts of an alert.
func (a *Alert) ValidateDefinition() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("alert name cannot be empty")
	}
	if len(a.Conditions) < MinConditions || len(a.Conditions) > MaxConditions {
		return fmt.Errorf("alert must have between %d and %d conditions", MinConditions, MaxConditions)
	}
	if a.DurationMinutes < MinDurationMinutes || a.DurationMinutes > MaxDurationMinutes {
		return fmt.Errorf("duration_minutes must be between %d and %d", MinDurationMinutes, MaxDurationMinutes)
	}
	for _, c := range a.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateConditions reports whether every condition holds against the given
// heartbeat fields. An inactive alert, or one without conditions, never fires.
// A condition whose metric is absent from fields is skipped rather than
// failed, so partial payloads can still trigger an alert.
func (a *Alert) EvaluateConditions(fields map[string]float64) bool {
	if !a.IsActive || len(a.Conditions) == 0 {
		return false
	}
	for _, c := range a.Conditions {
		current, ok := fields[string(c.Metric)]
		if !ok {
			continue
		}
		if !c.holds(current) {
			return false
		}
	}
	return true
}

// Trigger records a firing: last_triggered moves to now and the lifetime
// trigger count increments. Calling it again inside the debounce window keeps
// incrementing the count.
func (a *Alert) Trigger() {
	now := time.Now().UTC()
	a.LastTriggered = &now
	a.TriggerCount++
}

// Reset clears the trigger state so the alert can fire again immediately.
// The lifetime trigger count is preserved.
func (a *Alert) Reset() {
	a.LastTriggered = nil
}

// IsTriggered reports whether the alert is inside its debounce window at now.
func (a *Alert) IsTriggered(now time.Time) bool {
	if a.LastTriggered == nil {
		return false
	}
	return now.UTC().Sub(a.LastTriggered.UTC()) < time.Duration(a.DurationMinutes)*time.Minute
}

// ConditionsSummary renders the condition set as a human-readable string.
func (a *Alert) ConditionsSummary() string {
	if len(a.Conditions) == 0 {
		return "No conditions defined"
	}
	parts := make([]string, len(a.Conditions))
	for i, c := range a.Conditions {
		parts[i] = fmt.Sprintf("%s %s %g", c.Metric, c.Operator, c.Value)
	}
	return strings.Join(parts, " AND ")
}
