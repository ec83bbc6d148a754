package engine

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"bountyline/internal/domain"
	"bountyline/internal/events"
)

// ComputeRewardStatus derives a reward's aggregate status from its
// applications and cap. Pure and idempotent; the stored status is only a
// cached copy of this projection.
//
// Suggestions and cancelled rewards keep their status: the former are not
// accepting work yet, the latter never again. The three terminal commands
// (publish, close-out, mark-paid) write status directly and are the only
// other writers.
func ComputeRewardStatus(current string, apps []domain.Application, maxSubmissions *int) string {
	if current == domain.RewardStatusSuggestion || current == domain.RewardStatusCancelled {
		return current
	}
	slots := RemainingSlots(apps, maxSubmissions)
	if slots == nil || *slots > 0 {
		return domain.RewardStatusOpen
	}
	valid := 0
	paid := 0
	for _, a := range apps {
		if a.Status == domain.ApplicationStatusComplete {
			return domain.RewardStatusComplete
		}
		if ValidSubmission(a.Status) {
			valid++
			if a.Status == domain.ApplicationStatusPaid {
				paid++
			}
		}
	}
	if valid > 0 && paid == valid {
		return domain.RewardStatusPaid
	}
	// Cap exhausted but payouts still processing.
	return domain.RewardStatusInProgress
}

// rollupRewardStatusTx recomputes and persists the reward status inside
// the caller's transaction, strictly after the application write it
// depends on. No-op when the status is unchanged.
func (e Engine) rollupRewardStatusTx(ctx context.Context, tx *sql.Tx, rewardID, actorID string) (string, error) {
	rw, err := e.Repo.GetRewardTx(ctx, tx, rewardID)
	if err != nil {
		return "", err
	}
	apps, err := e.Repo.ListRewardApplicationsTx(ctx, tx, rewardID)
	if err != nil {
		return rw.Status, err
	}
	next := ComputeRewardStatus(rw.Status, apps, rw.MaxSubmissions)
	if next == rw.Status {
		return next, nil
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateRewardStatusTx(ctx, tx, rewardID, next, now); err != nil {
		return rw.Status, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRewardStatusRolled, rw.SpaceID, "reward", rewardID, actorID, events.EventPayload{
		"from_status": rw.Status,
		"to_status":   next,
	}); err != nil {
		return rw.Status, err
	}
	return next, nil
}

// RecomputeRewardStatus re-runs the rollup in its own transaction. It is
// the repair path: reward status can always be rebuilt from application
// state, so a failed in-command rollup is recoverable by calling this
// later (bl reward repair).
func (e Engine) RecomputeRewardStatus(ctx context.Context, rewardID, actorID string) (domain.Reward, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reward{}, err
	}
	defer tx.Rollback()
	status, err := e.rollupRewardStatusTx(ctx, tx, rewardID, actorID)
	if err != nil {
		return domain.Reward{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Reward{}, err
	}
	e.logger().Debug("reward status recomputed", zap.String("reward_id", rewardID), zap.String("status", status))
	return e.Repo.GetReward(ctx, rewardID)
}
