package errorhandler

import (
	"context"
)

// ErrorPhase indicates which broker RPC an error came from
type ErrorPhase int

const (
	PhaseUnknown    ErrorPhase = iota // zero value - uninitialized phase
	PhaseFetch                        // error during a record fetch
	PhaseOffsetLoad                   // error during the initial offset load or an offset reset lookup
	PhaseCommit                       // error during an offset commit
)

func (p ErrorPhase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseFetch:
		return "fetch"
	case PhaseOffsetLoad:
		return "offset_load"
	case PhaseCommit:
		return "commit"
	default:
		return "unknown"
	}
}

var _ Handler = (*PhaseRouter)(nil)

type PhaseRouter struct {
	handler           Handler
	fetchHandler      Handler
	offsetLoadHandler Handler
	commitHandler     Handler
}

// NewPhaseRouter creates a new PhaseRouter with the provided handlers for each phase.
// If a handler for a specific phase is nil, the router will fall back to the default handler.
// If the default handler is unset, defaults to SilentFail, which fails without logging at the error handler level.
func NewPhaseRouter(
	handler Handler, fetchHandler Handler, offsetLoadHandler Handler, commitHandler Handler,
) *PhaseRouter {
	if handler == nil {
		handler = SilentFail()
	}

	return &PhaseRouter{
		handler:           handler,
		fetchHandler:      fetchHandler,
		offsetLoadHandler: offsetLoadHandler,
		commitHandler:     commitHandler,
	}
}

func (r *PhaseRouter) Handle(ctx context.Context, ec ErrorContext) Action {
	switch ec.Phase {
	case PhaseFetch:
		if r.fetchHandler != nil {
			return r.fetchHandler.Handle(ctx, ec)
		}
	case PhaseOffsetLoad:
		if r.offsetLoadHandler != nil {
			return r.offsetLoadHandler.Handle(ctx, ec)
		}
	case PhaseCommit:
		if r.commitHandler != nil {
			return r.commitHandler.Handle(ctx, ec)
		}
	case PhaseUnknown:
	default:
	}

	return r.handler.Handle(ctx, ec)
}
