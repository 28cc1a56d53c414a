package client

import (
	"context"
	"errors"
)

// restoreStrategy runs the silent restoration rung of the decision ladder:
// one attempt per orchestrator lifetime, time-boxed, driven by the cached
// linked external id. A definitive restore_failed clears the hint so the
// next page load does not retry a dead id.
type restoreStrategy struct {
	tried bool
}

// run reports (state, true) when restoration settled the evaluation, or
// (zero, false) when the ladder should continue to the next rung.
func (r *restoreStrategy) run(ctx context.Context, o *Orchestrator, attempt uint64) (State, bool) {
	if r.tried {
		return State{}, false
	}

	externalID, ok := o.hints.Get(HintLinkedExternalID)
	if !ok || externalID == "" {
		return State{}, false
	}
	r.tried = true

	o.setPhase(attempt, RestoringFromLinkedIdentity)

	restoreCtx, cancel := context.WithTimeout(ctx, o.timeouts.Restore)
	defer cancel()

	outcome, err := o.bridge.AutoRestore(restoreCtx, externalID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("restoration timed out, forcing unauthenticated",
				"external_user_id", externalID)
		}
		return o.settleUnauthenticated(attempt, err), true
	}

	if !outcome.Restored {
		// The id is no longer linked. Drop the hint so the next load skips
		// this rung entirely.
		o.hints.Delete(HintLinkedExternalID)
		o.hints.Delete(HintAccountID)
		o.logger.Info("restoration failed, hint cleared", "external_user_id", externalID)
		return State{}, false
	}

	return o.redeemAndAdopt(restoreCtx, attempt, outcome.Ticket)
}
