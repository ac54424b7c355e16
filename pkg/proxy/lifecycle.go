package proxy

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/ZakWinnick/StatsForAdventure/internal/log"
	"github.com/ZakWinnick/StatsForAdventure/pkg/cache"
)

// Command lifecycle: PENDING -> {EXECUTING, COMPLETED, FAILED, UNKNOWN}; EXECUTING ->
// {COMPLETED, FAILED, UNKNOWN}. COMPLETED and FAILED are sinks. UNKNOWN is non-terminal so that
// later reconciliations can still land on a definitive state.
const (
	eventExecute  = "execute"
	eventComplete = "complete"
	eventFail     = "fail"
	eventLose     = "lose"
)

func newLifecycle(initial cache.CommandStatus) *fsm.FSM {
	return fsm.NewFSM(
		initial.String(),
		fsm.Events{
			{Name: eventExecute, Src: []string{cache.StatusPending.String(), cache.StatusUnknown.String()}, Dst: cache.StatusExecuting.String()},
			{Name: eventComplete, Src: []string{cache.StatusPending.String(), cache.StatusExecuting.String(), cache.StatusUnknown.String()}, Dst: cache.StatusCompleted.String()},
			{Name: eventFail, Src: []string{cache.StatusPending.String(), cache.StatusExecuting.String(), cache.StatusUnknown.String()}, Dst: cache.StatusFailed.String()},
			{Name: eventLose, Src: []string{cache.StatusPending.String(), cache.StatusExecuting.String()}, Dst: cache.StatusUnknown.String()},
		},
		fsm.Callbacks{},
	)
}

// transition applies an upstream-reported status on top of the cached one, refusing moves the
// lifecycle does not allow (in particular, anything out of a terminal state or back to PENDING).
// The cached status is returned unchanged when the reported move is rejected.
func transition(ctx context.Context, current, reported cache.CommandStatus) cache.CommandStatus {
	if current == reported {
		return current
	}

	var event string
	switch reported {
	case cache.StatusExecuting:
		event = eventExecute
	case cache.StatusCompleted:
		event = eventComplete
	case cache.StatusFailed:
		event = eventFail
	case cache.StatusUnknown:
		event = eventLose
	default:
		return current
	}

	machine := newLifecycle(current)
	if err := machine.Event(ctx, event); err != nil {
		log.Debug("Rejected status transition %s -> %s: %s", current, reported, err)
		return current
	}
	next, err := cache.ParseStatus(machine.Current())
	if err != nil {
		return current
	}
	return next
}
