package phase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/engine/inmem"
	"goa.design/agentkernel/phase"
)

func passingValidators() phase.Validators {
	return phase.ValidatorFunc(func(context.Context, *phase.Run) (apitypes.Verdict, error) {
		return apitypes.Verdict{Passed: true}, nil
	})
}

func failingValidators() phase.Validators {
	return phase.ValidatorFunc(func(context.Context, *phase.Run) (apitypes.Verdict, error) {
		return apitypes.Verdict{Passed: false, Blockers: []string{"x"}}, nil
	})
}

func readyBuildReport() phase.BuildReport {
	return phase.BuildReport{
		TestFilesPresent:   true,
		TestsFailing:       0,
		CoveragePercent:    90,
		TestRunOutput:      []string{"PASS: TestGreen"},
		AccessibilityScore: 95,
		PerformanceScore:   90,
		SecurityScore:      95,
		PriorPhasesPassed:  true,
	}
}

func TestKernelPromotesAReadyBlueprintToCompleted(t *testing.T) {
	k, err := phase.New(phase.Options{Strategy: passingValidators(), Build: passingValidators()})
	require.NoError(t, err)

	run := k.Start("run-1", phase.Blueprint{ID: "bp-1"})
	for i := 0; i < 5; i++ {
		run.Evidence().Append(apitypes.Evidence{ID: "e", Phase: "build"})
	}
	run.SetBuildReport(readyBuildReport())

	clock := inmem.NewDeterministicClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	wfCtx := inmem.NewDeterministicContext(context.Background(), "run-1", clock)

	require.NoError(t, k.Run(wfCtx, run))
	assert.Equal(t, phase.StateCompleted, run.State())
	decision := run.Decision()
	require.NotNil(t, decision)
	assert.Equal(t, "promote", decision.Outcome)
}

func TestKernelRecyclesOnFailedStrategy(t *testing.T) {
	k, err := phase.New(phase.Options{Strategy: failingValidators(), Build: passingValidators()})
	require.NoError(t, err)

	run := k.Start("run-1", phase.Blueprint{ID: "bp-1"})
	clock := inmem.NewDeterministicClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	wfCtx := inmem.NewDeterministicContext(context.Background(), "run-1", clock)

	require.NoError(t, k.Run(wfCtx, run))
	assert.Equal(t, phase.StateRecycled, run.State())
	assert.Len(t, run.History(), 1)
}

func TestKernelRecyclesOnTooManyBuildMajors(t *testing.T) {
	build := phase.ValidatorFunc(func(context.Context, *phase.Run) (apitypes.Verdict, error) {
		return apitypes.Verdict{Majors: []string{"a", "b", "c", "d"}}, nil
	})
	k, err := phase.New(phase.Options{Strategy: passingValidators(), Build: build})
	require.NoError(t, err)

	run := k.Start("run-1", phase.Blueprint{ID: "bp-1"})
	clock := inmem.NewDeterministicClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	wfCtx := inmem.NewDeterministicContext(context.Background(), "run-1", clock)

	require.NoError(t, k.Run(wfCtx, run))
	assert.Equal(t, phase.StateRecycled, run.State())
}

func TestHistoryIsMonotonicAndAppendOnly(t *testing.T) {
	k, err := phase.New(phase.Options{Strategy: passingValidators(), Build: passingValidators()})
	require.NoError(t, err)

	run := k.Start("run-1", phase.Blueprint{ID: "bp-1"})
	for i := 0; i < 5; i++ {
		run.Evidence().Append(apitypes.Evidence{ID: "e", Phase: "build"})
	}
	run.SetBuildReport(readyBuildReport())

	clock := inmem.NewDeterministicClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	wfCtx := inmem.NewDeterministicContext(context.Background(), "run-1", clock)
	require.NoError(t, k.Run(wfCtx, run))

	history := run.History()
	require.Len(t, history, 3)
	assert.Equal(t, phase.StateBuild, history[0].State)
	assert.Equal(t, phase.StateEvaluation, history[1].State)
	assert.Equal(t, phase.StateCompleted, history[2].State)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
	}
}

func TestDeterministicRunsOnSameBlueprintProduceIdenticalHistory(t *testing.T) {
	build := readyBuildReport()
	run1 := func() []phase.Snapshot {
		k, err := phase.New(phase.Options{Strategy: passingValidators(), Build: passingValidators()})
		require.NoError(t, err)
		bp := phase.Blueprint{ID: "bp-1", Description: "ship feature"}
		runID := phase.DeterministicRunID(bp)
		run := k.Start(runID, bp)
		for i := 0; i < 5; i++ {
			run.Evidence().Append(apitypes.Evidence{ID: "e", Phase: "build"})
		}
		run.SetBuildReport(build)
		clock := phase.NewDeterministicClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		wfCtx := phase.NewDeterministicContext(context.Background(), bp, clock)
		require.NoError(t, k.Run(wfCtx, run))
		return run.History()
	}

	h1 := run1()
	h2 := run1()
	require.Equal(t, len(h1), len(h2))
	for i := range h1 {
		assert.Equal(t, h1[i].State, h2[i].State)
		assert.True(t, h1[i].Timestamp.Equal(h2[i].Timestamp))
	}
}

func TestEvidenceAllIsCopyOnRead(t *testing.T) {
	k, err := phase.New(phase.Options{Strategy: passingValidators(), Build: passingValidators()})
	require.NoError(t, err)
	run := k.Start("run-1", phase.Blueprint{ID: "bp-1"})
	run.Evidence().Append(apitypes.Evidence{ID: "e1"})

	snapshot := run.Evidence().All()
	snapshot[0].ID = "mutated"

	assert.Equal(t, "e1", run.Evidence().All()[0].ID)
}

func TestTransitionOnTerminalRunFails(t *testing.T) {
	k, err := phase.New(phase.Options{Strategy: failingValidators(), Build: passingValidators()})
	require.NoError(t, err)
	run := k.Start("run-1", phase.Blueprint{ID: "bp-1"})
	clock := inmem.NewDeterministicClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	wfCtx := inmem.NewDeterministicContext(context.Background(), "run-1", clock)
	require.NoError(t, k.Run(wfCtx, run))
	assert.Error(t, k.Transition(wfCtx, run))
}
