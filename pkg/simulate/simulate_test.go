package simulate_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/renderlab/pkg/event"
	"github.com/ethpandaops/renderlab/pkg/format"
	"github.com/ethpandaops/renderlab/pkg/scheduler"
	"github.com/ethpandaops/renderlab/pkg/session"
	"github.com/ethpandaops/renderlab/pkg/simulate"
)

// inline runs posted functions immediately.
type inline struct{}

func (inline) Post(fn func()) { fn() }

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func runScenario(t *testing.T, id event.ScenarioID, frames, components int) *session.Session {
	t.Helper()

	sess := session.New(testLogger(), session.Config{Labeler: format.NewLabeler()}, scheduler.NewManual())

	d, err := simulate.New(testLogger(), sess, inline{}, simulate.Config{
		Scenario:   id,
		Frames:     frames,
		Components: components,
	})
	require.NoError(t, err)

	n, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, frames, n)

	return sess
}

func TestProfiles_CoverEveryScenario(t *testing.T) {
	profiles := simulate.Profiles()
	require.Len(t, profiles, len(event.Scenarios))

	for i, p := range profiles {
		assert.Equal(t, event.Scenarios[i], p.Scenario)
		assert.NotEmpty(t, p.Description)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     simulate.Config
		wantErr string
	}{
		{
			name:    "unknown scenario",
			cfg:     simulate.Config{Scenario: "nope", Components: 1},
			wantErr: "unknown scenario",
		},
		{
			name:    "no components",
			cfg:     simulate.Config{Scenario: event.ScenarioRerenders},
			wantErr: "components must be at least 1",
		},
		{
			name:    "negative frames",
			cfg:     simulate.Config{Scenario: event.ScenarioRerenders, Components: 1, Frames: -1},
			wantErr: "frames must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := simulate.New(testLogger(), nil, inline{}, tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_EveryScenarioCommitsEachFrame(t *testing.T) {
	for _, id := range event.Scenarios {
		t.Run(id.String(), func(t *testing.T) {
			sess := runScenario(t, id, 5, 3)

			snap := sess.Store().Snapshot()
			assert.Equal(t, id, snap.Scenario)
			assert.Equal(t, 5, snap.CommitTotals.Count)
			assert.Equal(t, 1, snap.CommitStats.Mounts)
			assert.Equal(t, 4, snap.CommitStats.Updates)
			assert.Positive(t, snap.CommitTotals.SumActualDuration)
			assert.NotEmpty(t, snap.RenderCounts)
		})
	}
}

func TestRun_RerendersKeepPropsStable(t *testing.T) {
	sess := runScenario(t, event.ScenarioRerenders, 4, 2)

	snap := sess.Store().Snapshot()
	assert.Equal(t, map[string]int{"Parent": 4, "Child-0": 4, "Child-1": 4}, snap.RenderCounts)
	assert.Empty(t, snap.Diffs)
}

func TestRun_UnstableReferencesReportFunctions(t *testing.T) {
	sess := runScenario(t, event.ScenarioUnstableReferences, 3, 2)

	diffs := sess.Store().Snapshot().Diffs
	require.Len(t, diffs, 2)

	for _, rec := range diffs {
		require.Len(t, rec.Changes, 1)
		assert.Equal(t, "onSelect", rec.Changes[0].Key)
		assert.Equal(t, event.KindFunction, rec.Changes[0].Kind)
	}
}

func TestRun_DerivedStateReportsObjects(t *testing.T) {
	sess := runScenario(t, event.ScenarioDerivedState, 3, 4)

	diffs := sess.Store().DiffsFor(event.ScenarioDerivedState)
	require.Len(t, diffs, 1)
	assert.Equal(t, "List", diffs[0].Name)
	require.Len(t, diffs[0].Changes, 1)
	assert.Equal(t, "items", diffs[0].Changes[0].Key)
	assert.Equal(t, event.KindObject, diffs[0].Changes[0].Kind)
}

func TestRun_KeyRemountRestartsCounts(t *testing.T) {
	sess := runScenario(t, event.ScenarioKeyRemount, 5, 2)

	counts := sess.Store().LatestRenderCounts(event.ScenarioKeyRemount)
	assert.Equal(t, 5, counts["Parent"])
	assert.Equal(t, 1, counts["Child-0"])
	assert.Equal(t, 1, counts["Child-1"])
	assert.Empty(t, sess.Store().DiffsFor(event.ScenarioKeyRemount))
}

func TestRun_TransitionsDeferSlowList(t *testing.T) {
	sess := runScenario(t, event.ScenarioTransitions, 8, 2)

	counts := sess.Store().LatestRenderCounts(event.ScenarioTransitions)
	assert.Equal(t, 8, counts["Input"])
	assert.Equal(t, 2, counts["SlowList"])
}

func TestRun_StopsWhenContextDone(t *testing.T) {
	sess := session.New(testLogger(), session.Config{Labeler: format.NewLabeler()}, scheduler.NewManual())

	d, err := simulate.New(testLogger(), sess, inline{}, simulate.Config{
		Scenario:        event.ScenarioRerenders,
		FramesPerSecond: 1000,
		Components:      1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n, err := d.Run(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Equal(t, n, sess.Store().CommitTotals(event.ScenarioRerenders).Count)
}

func TestRun_OnLoop(t *testing.T) {
	loop := scheduler.NewLoop(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, loop.Start(ctx))
	defer func() { _ = loop.Stop() }()

	sess := session.New(testLogger(), session.Config{Labeler: format.NewLabeler()}, loop)

	d, err := simulate.New(testLogger(), sess, loop, simulate.Config{
		Scenario:   event.ScenarioContextFanout,
		Frames:     10,
		Components: 3,
	})
	require.NoError(t, err)

	n, err := d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	snap := sess.Store().Snapshot()
	assert.Equal(t, 10, snap.CommitTotals.Count)
	assert.Equal(t, 10, snap.RenderCounts["Consumer-2"])
}
