package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bountyline/internal/domain"
	"bountyline/internal/events"
)

// ApplicationCreateOptions start work on a reward. A Message alone applies
// for approval-gated rewards; a Submission is direct work.
type ApplicationCreateOptions struct {
	ID              string
	RewardID        string
	Message         string
	Submission      string
	SubmissionNodes string
	WalletAddress   string
	ActorID         string
}

// CreateApplication opens a new application against a reward. The reward
// must accept submissions, the actor must satisfy the submitter policy,
// and a free slot must remain under the cap.
func (e Engine) CreateApplication(ctx context.Context, opts ApplicationCreateOptions) (domain.Application, error) {
	if opts.ActorID == "" {
		return domain.Application{}, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	rw, err := e.Repo.GetRewardTx(ctx, tx, opts.RewardID)
	if err != nil {
		return domain.Application{}, err
	}
	switch rw.Status {
	case domain.RewardStatusOpen, domain.RewardStatusInProgress:
	default:
		return domain.Application{}, fmt.Errorf("%w: reward is %s and does not accept submissions", ErrWrongState, rw.Status)
	}
	if rw.SubmissionsLocked {
		return domain.Application{}, fmt.Errorf("%w: submissions are locked", ErrWrongState)
	}
	if err := e.checkSubmitterPolicy(rw, opts.ActorID); err != nil {
		return domain.Application{}, err
	}

	apps, err := e.Repo.ListRewardApplicationsTx(ctx, tx, rw.ID)
	if err != nil {
		return domain.Application{}, err
	}
	if !rw.AllowMultipleApplications {
		for _, a := range apps {
			if a.CreatedBy != opts.ActorID {
				continue
			}
			switch a.Status {
			case domain.ApplicationStatusRejected, domain.ApplicationStatusSubmissionRejected, domain.ApplicationStatusCancelled:
			default:
				return domain.Application{}, fmt.Errorf("%w: you already have an active application for this reward", ErrInvalidInput)
			}
		}
	}
	if slots := RemainingSlots(apps, rw.MaxSubmissions); slots != nil && *slots == 0 {
		return domain.Application{}, fmt.Errorf("%w: the submission cap for this reward has been reached", ErrLimitReached)
	}

	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	status := domain.ApplicationStatusInProgress
	if rw.ApproveSubmitters {
		status = domain.ApplicationStatusApplied
	}
	app := domain.Application{
		ID:              id,
		RewardID:        rw.ID,
		SpaceID:         rw.SpaceID,
		CreatedBy:       opts.ActorID,
		Status:          status,
		Message:         opts.Message,
		Submission:      optionalString(opts.Submission),
		SubmissionNodes: optionalString(opts.SubmissionNodes),
		WalletAddress:   optionalString(opts.WalletAddress),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Repo.InsertApplicationTx(ctx, tx, app); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeApplicationCreated, rw.SpaceID, "application", app.ID, opts.ActorID, events.EventPayload{
		"reward_id": rw.ID,
		"status":    app.Status,
	}); err != nil {
		return domain.Application{}, err
	}
	if _, err := e.rollupRewardStatusTx(ctx, tx, rw.ID, opts.ActorID); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

// ApplicationUpdateOptions carry a submitter's edits to their own
// application. Nil fields are left alone.
type ApplicationUpdateOptions struct {
	ID              string
	Message         *string
	Submission      *string
	SubmissionNodes *string
	WalletAddress   *string
	RewardInfo      *string
	ActorID         string
}

// UpdateApplication lets the original submitter revise their message,
// submission content or wallet address. Approving a revised submission
// does not re-run the cap check.
func (e Engine) UpdateApplication(ctx context.Context, opts ApplicationUpdateOptions) (domain.Application, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	app, err := e.Repo.GetApplicationTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Application{}, err
	}
	if app.CreatedBy != opts.ActorID {
		return domain.Application{}, fmt.Errorf("%w: you cannot update another user's work", ErrForbidden)
	}
	switch app.Status {
	case domain.ApplicationStatusRejected, domain.ApplicationStatusCancelled,
		domain.ApplicationStatusProcessing, domain.ApplicationStatusPaid:
		return domain.Application{}, fmt.Errorf("%w: application is %s and can no longer be updated", ErrWrongState, app.Status)
	}
	rw, err := e.Repo.GetRewardTx(ctx, tx, app.RewardID)
	if err != nil {
		return domain.Application{}, err
	}
	if rw.SubmissionsLocked {
		return domain.Application{}, fmt.Errorf("%w: submissions are locked", ErrWrongState)
	}

	if opts.Message != nil {
		app.Message = *opts.Message
	}
	if opts.Submission != nil {
		app.Submission = optionalString(*opts.Submission)
	}
	if opts.SubmissionNodes != nil {
		app.SubmissionNodes = optionalString(*opts.SubmissionNodes)
	}
	if opts.WalletAddress != nil {
		app.WalletAddress = optionalString(*opts.WalletAddress)
	}
	if opts.RewardInfo != nil {
		app.RewardInfo = optionalString(*opts.RewardInfo)
	}
	// A rejected submission goes back under review once revised.
	if app.Status == domain.ApplicationStatusSubmissionRejected && (opts.Submission != nil || opts.SubmissionNodes != nil) {
		app.Status = domain.ApplicationStatusReview
	} else if app.Status == domain.ApplicationStatusInProgress && (opts.Submission != nil || opts.SubmissionNodes != nil) {
		app.Status = domain.ApplicationStatusReview
	}
	app.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateApplicationTx(ctx, tx, app); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeApplicationUpdated, app.SpaceID, "application", app.ID, opts.ActorID, events.EventPayload{
		"reward_id": app.RewardID,
		"status":    app.Status,
	}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

// ReviewOptions carry a reviewer's verdict on one application.
type ReviewOptions struct {
	ID       string
	Decision string
	ActorID  string
}

// ReviewApplication applies an approve or reject verdict. An approval of a
/// submission verifies remaining capacity first: if the cap is already
// consumed, the application is auto-rejected instead and ErrLimitReached
// is returned. An approval that consumes the last slot auto-rejects every
// other unresolved application on the reward.
func (e Engine) ReviewApplication(ctx context.Context, opts ReviewOptions) (domain.Application, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	app, err := e.Repo.GetApplicationTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Application{}, err
	}
	rw, err := e.Repo.GetRewardTx(ctx, tx, app.RewardID)
	if err != nil {
		return domain.Application{}, err
	}
	if err := e.checkReviewerAuthorization(rw, opts.ActorID); err != nil {
		return domain.Application{}, err
	}

	next, acceptance, err := reviewTransition(app.Status, opts.Decision)
	if err != nil {
		return domain.Application{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)

	if next == domain.ApplicationStatusComplete {
		apps, err := e.Repo.ListRewardApplicationsTx(ctx, tx, rw.ID)
		if err != nil {
			return domain.Application{}, err
		}
		if slots := RemainingSlots(apps, rw.MaxSubmissions); slots != nil && *slots == 0 {
			// Another submission won the race. Reject rather than
			// approving past the cap, and persist the rejection so the
			// reviewer queue drains.
			rejected, ok := rejectedStatusFor(app.Status)
			if !ok {
				return domain.Application{}, fmt.Errorf("%w: the submission cap for this reward has been reached", ErrLimitReached)
			}
			app.Status = rejected
			app.ReviewedBy = &opts.ActorID
			app.UpdatedAt = now
			if err := e.Repo.UpdateApplicationTx(ctx, tx, app); err != nil {
				return domain.Application{}, err
			}
			if err := e.Events.Append(ctx, tx, events.TypeApplicationReviewed, app.SpaceID, "application", app.ID, opts.ActorID, events.EventPayload{
				"reward_id": rw.ID,
				"decision":  "auto_reject",
				"status":    app.Status,
			}); err != nil {
				return domain.Application{}, err
			}
			if _, err := e.rollupRewardStatusTx(ctx, tx, rw.ID, opts.ActorID); err != nil {
				return domain.Application{}, err
			}
			if err := tx.Commit(); err != nil {
				return domain.Application{}, err
			}
			return app, fmt.Errorf("%w: the submission cap for this reward has been reached", ErrLimitReached)
		}
	}

	app.Status = next
	if acceptance {
		app.AcceptedBy = &opts.ActorID
	} else {
		app.ReviewedBy = &opts.ActorID
	}
	app.UpdatedAt = now
	if err := e.Repo.UpdateApplicationTx(ctx, tx, app); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeApplicationReviewed, app.SpaceID, "application", app.ID, opts.ActorID, events.EventPayload{
		"reward_id": rw.ID,
		"decision":  opts.Decision,
		"status":    app.Status,
	}); err != nil {
		return domain.Application{}, err
	}

	if next == domain.ApplicationStatusComplete {
		if err := e.Events.Append(ctx, tx, events.TypeSubmissionApproved, app.SpaceID, "application", app.ID, opts.ActorID, events.EventPayload{
			"reward_id": rw.ID,
		}); err != nil {
			return domain.Application{}, err
		}
		apps, err := e.Repo.ListRewardApplicationsTx(ctx, tx, rw.ID)
		if err != nil {
			return domain.Application{}, err
		}
		if slots := RemainingSlots(apps, rw.MaxSubmissions); slots != nil && *slots == 0 {
			if err := e.rejectRemaining(ctx, tx, apps, app.ID, opts.ActorID, now); err != nil {
				return domain.Application{}, err
			}
		}
	}

	if _, err := e.rollupRewardStatusTx(ctx, tx, rw.ID, opts.ActorID); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

// rejectRemaining closes out every still-unresolved application after the
// cap has filled.
func (e Engine) rejectRemaining(ctx context.Context, tx *sql.Tx, apps []domain.Application, winnerID, actorID, now string) error {
	for _, a := range apps {
		if a.ID == winnerID {
			continue
		}
		rejected, ok := rejectedStatusFor(a.Status)
		if !ok {
			continue
		}
		a.Status = rejected
		a.ReviewedBy = &actorID
		a.UpdatedAt = now
		if err := e.Repo.UpdateApplicationTx(ctx, tx, a); err != nil {
			return err
		}
		if err := e.Events.Append(ctx, tx, events.TypeApplicationReviewed, a.SpaceID, "application", a.ID, actorID, events.EventPayload{
			"reward_id": a.RewardID,
			"decision":  "auto_reject",
			"status":    a.Status,
		}); err != nil {
			return err
		}
		e.logger().Debug("auto-rejected application after cap filled",
			zap.String("application_id", a.ID),
			zap.String("reward_id", a.RewardID))
	}
	return nil
}

func (e Engine) checkSubmitterPolicy(rw domain.Reward, actorID string) error {
	switch rw.SubmitterPolicy.Kind {
	case domain.SubmitterPolicyOpen, "":
		return nil
	case domain.SubmitterPolicyRoleRestricted:
		if e.Config == nil || e.Config.UserInRoles(actorID, rw.SubmitterPolicy.RoleIDs) {
			return nil
		}
		return fmt.Errorf("%w: this reward is restricted to specific roles", ErrForbidden)
	case domain.SubmitterPolicyAssigned:
		for _, id := range rw.SubmitterPolicy.UserIDs {
			if id == actorID {
				return nil
			}
		}
		return fmt.Errorf("%w: this reward is assigned to specific users", ErrForbidden)
	default:
		return fmt.Errorf("%w: unknown submitter policy kind %q", ErrInvalidInput, rw.SubmitterPolicy.Kind)
	}
}

func (e Engine) checkReviewerAuthorization(rw domain.Reward, actorID string) error {
	if len(rw.Reviewers) == 0 {
		return fmt.Errorf("%w: this reward has no reviewers assigned", ErrForbidden)
	}
	var roleIDs []string
	for _, t := range rw.Reviewers {
		switch t.Group {
		case domain.ReviewerGroupUser:
			if t.ID == actorID {
				return nil
			}
		case domain.ReviewerGroupRole:
			roleIDs = append(roleIDs, t.ID)
		}
	}
	if len(roleIDs) > 0 && (e.Config == nil || e.Config.UserInRoles(actorID, roleIDs)) {
		return nil
	}
	return fmt.Errorf("%w: you are not a reviewer for this reward", ErrForbidden)
}
