package event

import (
	"time"
)

// ScenarioID identifies one of the teaching scenarios a measurement
// belongs to.
type ScenarioID string

// Known scenarios.
const (
	ScenarioRerenders          ScenarioID = "rerenders"
	ScenarioUnstableReferences ScenarioID = "unstable-references"
	ScenarioContextFanout      ScenarioID = "context-fanout"
	ScenarioDerivedState       ScenarioID = "derived-state"
	ScenarioKeyRemount         ScenarioID = "key-remount"
	ScenarioListIdentity       ScenarioID = "list-identity"
	ScenarioStrictMode         ScenarioID = "strict-mode"
	ScenarioEffectDeps         ScenarioID = "effect-deps"
	ScenarioTransitions        ScenarioID = "transitions"
	ScenarioDeferredValue      ScenarioID = "deferred-value"
)

// Scenarios lists the known scenarios in menu order.
var Scenarios = []ScenarioID{
	ScenarioRerenders,
	ScenarioUnstableReferences,
	ScenarioContextFanout,
	ScenarioDerivedState,
	ScenarioKeyRemount,
	ScenarioListIdentity,
	ScenarioStrictMode,
	ScenarioEffectDeps,
	ScenarioTransitions,
	ScenarioDeferredValue,
}

// Valid reports whether id is one of the known scenarios.
func (id ScenarioID) Valid() bool {
	for _, s := range Scenarios {
		if s == id {
			return true
		}
	}

	return false
}

func (id ScenarioID) String() string {
	return string(id)
}

// RenderEvent says component Name has now rendered Count times in ScenarioID.
type RenderEvent struct {
	Name       string     `json:"name" yaml:"name"`
	Count      int        `json:"count" yaml:"count"`
	At         time.Time  `json:"at" yaml:"at"`
	ScenarioID ScenarioID `json:"scenario_id" yaml:"scenario_id"`
}

// Phase is the commit phase reported by the profiling boundary.
type Phase string

const (
	PhaseMount  Phase = "mount"
	PhaseUpdate Phase = "update"
)

// CommitSample is one subtree commit. Durations are in milliseconds.
type CommitSample struct {
	ID             string     `json:"id" yaml:"id"`
	Phase          Phase      `json:"phase" yaml:"phase"`
	ActualDuration float64    `json:"actual_duration" yaml:"actual_duration"`
	BaseDuration   float64    `json:"base_duration" yaml:"base_duration"`
	CommitTime     float64    `json:"commit_time" yaml:"commit_time"`
	ScenarioID     ScenarioID `json:"scenario_id" yaml:"scenario_id"`
}

// Kind is the coarse classification of a changed input value.
type Kind string

const (
	KindValue    Kind = "value"
	KindFunction Kind = "function"
	KindObject   Kind = "object"
)

// PropChange is one input field that differs between two observations.
type PropChange struct {
	Key  string `json:"key" yaml:"key"`
	From any    `json:"from" yaml:"from"`
	To   any    `json:"to" yaml:"to"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// DiffRecord is the latest set of input changes seen for a component.
type DiffRecord struct {
	Name       string       `json:"name" yaml:"name"`
	At         time.Time    `json:"at" yaml:"at"`
	ScenarioID ScenarioID   `json:"scenario_id" yaml:"scenario_id"`
	Changes    []PropChange `json:"changes" yaml:"changes"`
}

// DiffKey identifies the single DiffRecord slot of a component in a scenario.
type DiffKey struct {
	ScenarioID ScenarioID
	Name       string
}

// Key returns the identity slot of the record.
func (r *DiffRecord) Key() DiffKey {
	return DiffKey{ScenarioID: r.ScenarioID, Name: r.Name}
}
