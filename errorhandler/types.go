package errorhandler

import (
	"context"
)

type ActionType int

const (
	ActionTypeContinue ActionType = iota // Absorb the failure, let the next tick retry
	ActionTypeRetry                      // Retry the RPC within this step
	ActionTypeFail                       // Terminate the partition consumer
)

func (a ActionType) String() string {
	switch a {
	case ActionTypeContinue:
		return "Continue"
	case ActionTypeRetry:
		return "Retry"
	case ActionTypeFail:
		return "Fail"
	default:
		return "Unknown"
	}
}

var _ Action = ActionContinue{}
var _ Action = ActionRetry{}
var _ Action = ActionFail{}

type Action interface {
	Type() ActionType
}

type ActionContinue struct{}

func (a ActionContinue) Type() ActionType {
	return ActionTypeContinue
}

type ActionRetry struct{}

func (a ActionRetry) Type() ActionType {
	return ActionTypeRetry
}

type ActionFail struct{}

func (a ActionFail) Type() ActionType {
	return ActionTypeFail
}

type Handler interface {
	Handle(ctx context.Context, ec ErrorContext) Action
}

type HandlerFunc func(ctx context.Context, ec ErrorContext) Action

func (f HandlerFunc) Handle(ctx context.Context, ec ErrorContext) Action {
	return f(ctx, ec)
}
