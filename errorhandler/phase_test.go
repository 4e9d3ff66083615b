//go:build unit

package errorhandler_test

import (
	"context"
	"testing"

	"github.com/hugolhafner/go-consume/errorhandler"
	"github.com/stretchr/testify/require"
)

func TestErrorPhase_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		phase    errorhandler.ErrorPhase
		expected string
	}{
		{errorhandler.PhaseUnknown, "unknown"},
		{errorhandler.PhaseFetch, "fetch"},
		{errorhandler.PhaseOffsetLoad, "offset_load"},
		{errorhandler.PhaseCommit, "commit"},
		{errorhandler.ErrorPhase(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(
			tt.expected, func(t *testing.T) {
				t.Parallel()
				require.Equal(t, tt.expected, tt.phase.String())
			},
		)
	}
}

// actionHandler returns a handler that always returns the given action.
func actionHandler(a errorhandler.Action) errorhandler.Handler {
	return errorhandler.HandlerFunc(
		func(_ context.Context, _ errorhandler.ErrorContext) errorhandler.Action {
			return a
		},
	)
}

func ecWithPhase(phase errorhandler.ErrorPhase) errorhandler.ErrorContext {
	return errorhandler.NewErrorContext("g", testTP(), nil).WithPhase(phase)
}

func TestPhaseRouter_RoutesToFetchHandler(t *testing.T) {
	t.Parallel()
	router := errorhandler.NewPhaseRouter(
		actionHandler(errorhandler.ActionFail{}),
		actionHandler(errorhandler.ActionContinue{}), // fetch
		nil,
		nil,
	)

	action := router.Handle(context.Background(), ecWithPhase(errorhandler.PhaseFetch))
	require.IsType(t, errorhandler.ActionContinue{}, action)
}

func TestPhaseRouter_RoutesToOffsetLoadHandler(t *testing.T) {
	t.Parallel()
	router := errorhandler.NewPhaseRouter(
		actionHandler(errorhandler.ActionFail{}),
		nil,
		actionHandler(errorhandler.ActionRetry{}), // offset load
		nil,
	)

	action := router.Handle(context.Background(), ecWithPhase(errorhandler.PhaseOffsetLoad))
	require.IsType(t, errorhandler.ActionRetry{}, action)
}

func TestPhaseRouter_RoutesToCommitHandler(t *testing.T) {
	t.Parallel()
	router := errorhandler.NewPhaseRouter(
		actionHandler(errorhandler.ActionFail{}),
		nil,
		nil,
		actionHandler(errorhandler.ActionContinue{}), // commit
	)

	action := router.Handle(context.Background(), ecWithPhase(errorhandler.PhaseCommit))
	require.IsType(t, errorhandler.ActionContinue{}, action)
}

func TestPhaseRouter_FallsBackToDefault(t *testing.T) {
	t.Parallel()
	router := errorhandler.NewPhaseRouter(
		actionHandler(errorhandler.ActionContinue{}),
		nil,
		nil,
		nil,
	)

	for _, phase := range []errorhandler.ErrorPhase{
		errorhandler.PhaseUnknown,
		errorhandler.PhaseFetch,
		errorhandler.PhaseOffsetLoad,
		errorhandler.PhaseCommit,
	} {
		action := router.Handle(context.Background(), ecWithPhase(phase))
		require.IsType(t, errorhandler.ActionContinue{}, action, "phase %s", phase)
	}
}

func TestPhaseRouter_NilDefaultUsesSilentFail(t *testing.T) {
	t.Parallel()
	router := errorhandler.NewPhaseRouter(nil, nil, nil, nil)

	action := router.Handle(context.Background(), ecWithPhase(errorhandler.PhaseFetch))
	require.IsType(t, errorhandler.ActionFail{}, action)
}

func TestActionType_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		action   errorhandler.ActionType
		expected string
	}{
		{errorhandler.ActionTypeContinue, "Continue"},
		{errorhandler.ActionTypeRetry, "Retry"},
		{errorhandler.ActionTypeFail, "Fail"},
		{errorhandler.ActionType(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(
			tt.expected, func(t *testing.T) {
				t.Parallel()
				require.Equal(t, tt.expected, tt.action.String())
			},
		)
	}
}
