package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bountyline/internal/config"
	"bountyline/internal/domain"
	"bountyline/internal/events"
	"bountyline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Logger *zap.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Logger: logger,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// InitSpace creates a space with a seed config.
func (e Engine) InitSpace(ctx context.Context, spaceID, name, actorID string) (domain.Space, error) {
	if strings.TrimSpace(spaceID) == "" {
		return domain.Space{}, fmt.Errorf("%w: space id is required", ErrInvalidInput)
	}
	if name == "" {
		name = spaceID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Space{}, err
	}
	defer tx.Rollback()

	s := domain.Space{
		ID:        spaceID,
		Name:      name,
		Status:    "active",
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertSpace(ctx, tx, s); err != nil {
		return domain.Space{}, fmt.Errorf("insert space: %w", err)
	}
	if err := e.Repo.UpsertSpaceConfigTx(ctx, tx, s.ID, config.Default(s.ID)); err != nil {
		return domain.Space{}, fmt.Errorf("insert space config: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TypeSpaceInit, s.ID, "space", s.ID, actorID, events.EventPayload{"status": s.Status}); err != nil {
		return domain.Space{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Space{}, err
	}
	return s, nil
}

// RewardCreateOptions are parameters for creating a reward.
type RewardCreateOptions struct {
	ID           string
	SpaceID      string
	Title        string
	Status       string
	ChainID      *int64
	RewardToken  string
	RewardAmount *float64
	CustomReward string

	ApproveSubmitters         bool
	AllowMultipleApplications bool
	MaxSubmissions            *int
	DueDate                   string
	KYCRequired               bool

	SubmitterPolicy *domain.SubmitterPolicy
	Reviewers       []domain.ReviewerTarget

	Fields map[string]any
	// PageID attaches the reward to an existing external page instead of
	// relying on Title; PageTitle is that page's title for validation.
	PageID    string
	PageTitle string

	ProposalID  string
	TemplateID  string
	IsTemplate  bool
	IsMilestone bool

	ActorID string
}

// CreateReward creates a reward in suggestion or open status. Open rewards
// must already satisfy the payout rule unless they are templates or
// proposal-attached drafts.
func (e Engine) CreateReward(ctx context.Context, opts RewardCreateOptions) (domain.Reward, error) {
	if opts.SpaceID == "" {
		return domain.Reward{}, fmt.Errorf("%w: space is required", ErrInvalidInput)
	}
	if opts.Status == "" {
		opts.Status = domain.RewardStatusSuggestion
	}
	if opts.Status != domain.RewardStatusSuggestion && opts.Status != domain.RewardStatusOpen {
		return domain.Reward{}, fmt.Errorf("%w: a reward can only be created as %s or %s", ErrInvalidInput,
			domain.RewardStatusSuggestion, domain.RewardStatusOpen)
	}
	if _, err := e.Repo.GetSpace(ctx, opts.SpaceID); err != nil {
		return domain.Reward{}, err
	}
	if err := validateReviewerTargets(e.Config, opts.Reviewers); err != nil {
		return domain.Reward{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	rw := domain.Reward{
		ID:                        id,
		SpaceID:                   opts.SpaceID,
		Title:                     opts.Title,
		Status:                    opts.Status,
		ChainID:                   opts.ChainID,
		RewardToken:               optionalString(opts.RewardToken),
		RewardAmount:              opts.RewardAmount,
		CustomReward:              optionalString(opts.CustomReward),
		ApproveSubmitters:         opts.ApproveSubmitters,
		AllowMultipleApplications: opts.AllowMultipleApplications,
		MaxSubmissions:            opts.MaxSubmissions,
		DueDate:                   optionalString(opts.DueDate),
		KYCRequired:               opts.KYCRequired,
		SubmitterPolicy:           domain.OpenSubmitterPolicy(),
		Reviewers:                 opts.Reviewers,
		PageID:                    optionalString(opts.PageID),
		ProposalID:                optionalString(opts.ProposalID),
		TemplateID:                optionalString(opts.TemplateID),
		IsTemplate:                opts.IsTemplate,
		IsMilestone:               opts.IsMilestone,
		CreatedBy:                 opts.ActorID,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if opts.SubmitterPolicy != nil {
		if !validSubmitterPolicyKind(opts.SubmitterPolicy.Kind) {
			return domain.Reward{}, fmt.Errorf("%w: unknown submitter policy kind %q", ErrInvalidInput, opts.SubmitterPolicy.Kind)
		}
		rw.SubmitterPolicy = *opts.SubmitterPolicy
	}
	normalizeSubmitterPolicy(&rw)
	if err := validateSubmitterRoles(e.Config, rw.SubmitterPolicy); err != nil {
		return domain.Reward{}, err
	}
	if opts.Fields != nil {
		data, err := json.Marshal(opts.Fields)
		if err != nil {
			return domain.Reward{}, fmt.Errorf("%w: fields: %v", ErrInvalidInput, err)
		}
		s := string(data)
		rw.FieldsJSON = &s
	}
	if rw.Status == domain.RewardStatusOpen && !rw.IsTemplate && rw.ProposalID == nil {
		if errs := payoutErrors(rw, rw.RewardType()); len(errs) > 0 {
			return domain.Reward{}, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(errs, "; "))
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reward{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertRewardTx(ctx, tx, rw); err != nil {
		return domain.Reward{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRewardCreated, rw.SpaceID, "reward", rw.ID, opts.ActorID, events.EventPayload{
		"title":  rw.Title,
		"status": rw.Status,
	}); err != nil {
		return domain.Reward{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Reward{}, err
	}
	return rw, nil
}

// PublishOptions finalize a draft for publication. Reviewer and submitter
// sets given here replace the stored ones before validation runs.
type PublishOptions struct {
	ID              string
	Reviewers       []domain.ReviewerTarget
	SubmitterPolicy *domain.SubmitterPolicy
	PageTitle       string
	ActorID         string
}

// PublishReward validates the reward configuration and promotes it to
// open status.
func (e Engine) PublishReward(ctx context.Context, opts PublishOptions) (domain.Reward, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reward{}, err
	}
	defer tx.Rollback()

	rw, err := e.Repo.GetRewardTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Reward{}, err
	}
	switch rw.Status {
	case domain.RewardStatusSuggestion, domain.RewardStatusOpen:
	default:
		return domain.Reward{}, fmt.Errorf("%w: reward is %s and cannot be published", ErrWrongState, rw.Status)
	}
	if opts.Reviewers != nil {
		if err := validateReviewerTargets(e.Config, opts.Reviewers); err != nil {
			return domain.Reward{}, err
		}
		rw.Reviewers = opts.Reviewers
	}
	if opts.SubmitterPolicy != nil {
		if !validSubmitterPolicyKind(opts.SubmitterPolicy.Kind) {
			return domain.Reward{}, fmt.Errorf("%w: unknown submitter policy kind %q", ErrInvalidInput, opts.SubmitterPolicy.Kind)
		}
		rw.SubmitterPolicy = *opts.SubmitterPolicy
		normalizeSubmitterPolicy(&rw)
		if err := validateSubmitterRoles(e.Config, rw.SubmitterPolicy); err != nil {
			return domain.Reward{}, err
		}
	}
	if errs := RewardErrors(RewardValidationInput{Reward: rw, PageTitle: opts.PageTitle}); len(errs) > 0 {
		return domain.Reward{}, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(errs, "; "))
	}

	rw.Status = domain.RewardStatusOpen
	rw.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateRewardTx(ctx, tx, rw); err != nil {
		return domain.Reward{}, err
	}
	if err := e.Repo.ReplaceReviewersTx(ctx, tx, rw.ID, rw.Reviewers); err != nil {
		return domain.Reward{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRewardPublished, rw.SpaceID, "reward", rw.ID, opts.ActorID, events.EventPayload{
		"status": rw.Status,
	}); err != nil {
		return domain.Reward{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Reward{}, err
	}
	return rw, nil
}

// RewardUpdateOptions mutate reward settings. Nil fields are left alone; a
// MaxSubmissions of zero or below clears the cap.
type RewardUpdateOptions struct {
	ID           string
	Title        *string
	ChainID      *int64
	RewardToken  *string
	RewardAmount *float64
	CustomReward *string

	ApproveSubmitters         *bool
	AllowMultipleApplications *bool
	MaxSubmissions            *int
	DueDate                   *string
	KYCRequired               *bool

	SubmitterPolicy *domain.SubmitterPolicy
	Reviewers       []domain.ReviewerTarget

	Fields map[string]any

	ActorID string
}

// UpdateRewardSettings mutates payout, approval, cap and reviewer fields.
// Shrinking the cap below the number of already-valid submissions is
// rejected, and the status rollup runs afterwards since a cap change can
// change the aggregate status.
func (e Engine) UpdateRewardSettings(ctx context.Context, opts RewardUpdateOptions) (domain.Reward, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reward{}, err
	}
	defer tx.Rollback()

	rw, err := e.Repo.GetRewardTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Reward{}, err
	}
	switch rw.Status {
	case domain.RewardStatusComplete, domain.RewardStatusPaid, domain.RewardStatusCancelled:
		return domain.Reward{}, fmt.Errorf("%w: reward is %s and can no longer be updated", ErrWrongState, rw.Status)
	}

	if opts.Title != nil {
		rw.Title = *opts.Title
	}
	if opts.ChainID != nil {
		rw.ChainID = opts.ChainID
	}
	if opts.RewardToken != nil {
		rw.RewardToken = optionalString(*opts.RewardToken)
	}
	if opts.RewardAmount != nil {
		if *opts.RewardAmount < 0 {
			return domain.Reward{}, fmt.Errorf("%w: reward amount must not be negative", ErrInvalidInput)
		}
		rw.RewardAmount = opts.RewardAmount
	}
	if opts.CustomReward != nil {
		rw.CustomReward = optionalString(*opts.CustomReward)
	}
	if opts.ApproveSubmitters != nil {
		rw.ApproveSubmitters = *opts.ApproveSubmitters
	}
	if opts.AllowMultipleApplications != nil {
		rw.AllowMultipleApplications = *opts.AllowMultipleApplications
	}
	if opts.MaxSubmissions != nil {
		if *opts.MaxSubmissions <= 0 {
			rw.MaxSubmissions = nil
		} else {
			apps, err := e.Repo.ListRewardApplicationsTx(ctx, tx, rw.ID)
			if err != nil {
				return domain.Reward{}, err
			}
			if valid := CountValidSubmissions(apps); *opts.MaxSubmissions < valid {
				return domain.Reward{}, fmt.Errorf("%w: max submissions cannot be lower than the %d valid submissions already made", ErrInvalidInput, valid)
			}
			rw.MaxSubmissions = opts.MaxSubmissions
		}
	}
	if opts.DueDate != nil {
		rw.DueDate = optionalString(*opts.DueDate)
	}
	if opts.KYCRequired != nil {
		rw.KYCRequired = *opts.KYCRequired
	}
	if opts.SubmitterPolicy != nil {
		if !validSubmitterPolicyKind(opts.SubmitterPolicy.Kind) {
			return domain.Reward{}, fmt.Errorf("%w: unknown submitter policy kind %q", ErrInvalidInput, opts.SubmitterPolicy.Kind)
		}
		rw.SubmitterPolicy = *opts.SubmitterPolicy
	}
	normalizeSubmitterPolicy(&rw)
	if err := validateSubmitterRoles(e.Config, rw.SubmitterPolicy); err != nil {
		return domain.Reward{}, err
	}
	if opts.Reviewers != nil {
		if err := validateReviewerTargets(e.Config, opts.Reviewers); err != nil {
			return domain.Reward{}, err
		}
		rw.Reviewers = opts.Reviewers
	}
	if opts.Fields != nil {
		data, err := json.Marshal(opts.Fields)
		if err != nil {
			return domain.Reward{}, fmt.Errorf("%w: fields: %v", ErrInvalidInput, err)
		}
		s := string(data)
		rw.FieldsJSON = &s
	}

	rw.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateRewardTx(ctx, tx, rw); err != nil {
		return domain.Reward{}, err
	}
	if opts.Reviewers != nil {
		if err := e.Repo.ReplaceReviewersTx(ctx, tx, rw.ID, rw.Reviewers); err != nil {
			return domain.Reward{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, events.TypeRewardUpdated, rw.SpaceID, "reward", rw.ID, opts.ActorID, nil); err != nil {
		return domain.Reward{}, err
	}
	status, err := e.rollupRewardStatusTx(ctx, tx, rw.ID, opts.ActorID)
	if err != nil {
		return domain.Reward{}, err
	}
	rw.Status = status
	if err := tx.Commit(); err != nil {
		return domain.Reward{}, err
	}
	return rw, nil
}

// SetRewardUsersOptions replace the reviewer set and/or the submitter
// policy wholesale.
type SetRewardUsersOptions struct {
	ID              string
	Reviewers       []domain.ReviewerTarget
	SubmitterPolicy *domain.SubmitterPolicy
	ActorID         string
}

// SetRewardUsers replaces reviewer and submitter assignments in one
// transaction. Lists are replaced, not merged.
func (e Engine) SetRewardUsers(ctx context.Context, opts SetRewardUsersOptions) (domain.Reward, error) {
	if opts.Reviewers == nil && opts.SubmitterPolicy == nil {
		return domain.Reward{}, fmt.Errorf("%w: nothing to set", ErrInvalidInput)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reward{}, err
	}
	defer tx.Rollback()

	rw, err := e.Repo.GetRewardTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Reward{}, err
	}
	if opts.Reviewers != nil {
		if err := validateReviewerTargets(e.Config, opts.Reviewers); err != nil {
			return domain.Reward{}, err
		}
		rw.Reviewers = opts.Reviewers
		if err := e.Repo.ReplaceReviewersTx(ctx, tx, rw.ID, rw.Reviewers); err != nil {
			return domain.Reward{}, err
		}
	}
	if opts.SubmitterPolicy != nil {
		if !validSubmitterPolicyKind(opts.SubmitterPolicy.Kind) {
			return domain.Reward{}, fmt.Errorf("%w: unknown submitter policy kind %q", ErrInvalidInput, opts.SubmitterPolicy.Kind)
		}
		rw.SubmitterPolicy = *opts.SubmitterPolicy
		normalizeSubmitterPolicy(&rw)
		if err := validateSubmitterRoles(e.Config, rw.SubmitterPolicy); err != nil {
			return domain.Reward{}, err
		}
	}
	rw.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateRewardTx(ctx, tx, rw); err != nil {
		return domain.Reward{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRewardUsersSet, rw.SpaceID, "reward", rw.ID, opts.ActorID, events.EventPayload{
		"reviewer_count": len(rw.Reviewers),
		"policy":         rw.SubmitterPolicy.Kind,
	}); err != nil {
		return domain.Reward{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Reward{}, err
	}
	return rw, nil
}

// CloseOutReward rejects all unresolved applications and marks the reward
// complete.
func (e Engine) CloseOutReward(ctx context.Context, rewardID, actorID string) (domain.Reward, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reward{}, err
	}
	defer tx.Rollback()

	rw, err := e.Repo.GetRewardTx(ctx, tx, rewardID)
	if err != nil {
		return domain.Reward{}, err
	}
	switch rw.Status {
	case domain.RewardStatusComplete, domain.RewardStatusPaid, domain.RewardStatusCancelled:
		return domain.Reward{}, fmt.Errorf("%w: reward is already %s", ErrWrongState, rw.Status)
	}
	apps, err := e.Repo.ListRewardApplicationsTx(ctx, tx, rewardID)
	if err != nil {
		return domain.Reward{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	for _, a := range apps {
		if !Reviewable(a.Status) {
			continue
		}
		a.Status = domain.ApplicationStatusRejected
		a.ReviewedBy = &actorID
		a.UpdatedAt = now
		if err := e.Repo.UpdateApplicationTx(ctx, tx, a); err != nil {
			return domain.Reward{}, err
		}
	}
	rw.Status = domain.RewardStatusComplete
	rw.UpdatedAt = now
	if err := e.Repo.UpdateRewardStatusTx(ctx, tx, rw.ID, rw.Status, now); err != nil {
		return domain.Reward{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRewardClosedOut, rw.SpaceID, "reward", rw.ID, actorID, nil); err != nil {
		return domain.Reward{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Reward{}, err
	}
	return rw, nil
}

// MarkRewardAsPaid bulk-transitions every live application to paid and
// sets the reward paid. Fails unless all live applications are already in
// a paid-eligible status (complete, processing or paid).
func (e Engine) MarkRewardAsPaid(ctx context.Context, rewardID, actorID string) (domain.Reward, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reward{}, err
	}
	defer tx.Rollback()

	rw, err := e.Repo.GetRewardTx(ctx, tx, rewardID)
	if err != nil {
		return domain.Reward{}, err
	}
	if rw.Status == domain.RewardStatusCancelled {
		return domain.Reward{}, fmt.Errorf("%w: reward is cancelled", ErrWrongState)
	}
	apps, err := e.Repo.ListRewardApplicationsTx(ctx, tx, rewardID)
	if err != nil {
		return domain.Reward{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	for _, a := range apps {
		switch a.Status {
		case domain.ApplicationStatusRejected, domain.ApplicationStatusSubmissionRejected, domain.ApplicationStatusCancelled:
			continue
		case domain.ApplicationStatusComplete, domain.ApplicationStatusProcessing:
			a.Status = domain.ApplicationStatusPaid
			a.UpdatedAt = now
			if err := e.Repo.UpdateApplicationTx(ctx, tx, a); err != nil {
				return domain.Reward{}, err
			}
		case domain.ApplicationStatusPaid:
		default:
			return domain.Reward{}, fmt.Errorf("%w: application %s is %s and not eligible for payment", ErrWrongState, a.ID, a.Status)
		}
	}
	rw.Status = domain.RewardStatusPaid
	if err := e.Repo.UpdateRewardStatusTx(ctx, tx, rw.ID, rw.Status, now); err != nil {
		return domain.Reward{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRewardPaid, rw.SpaceID, "reward", rw.ID, actorID, nil); err != nil {
		return domain.Reward{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Reward{}, err
	}
	return rw, nil
}

// LockSubmissions toggles the submissions lock and re-runs the rollup.
func (e Engine) LockSubmissions(ctx context.Context, rewardID string, locked bool, actorID string) (domain.Reward, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reward{}, err
	}
	defer tx.Rollback()

	rw, err := e.Repo.GetRewardTx(ctx, tx, rewardID)
	if err != nil {
		return domain.Reward{}, err
	}
	rw.SubmissionsLocked = locked
	rw.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateRewardTx(ctx, tx, rw); err != nil {
		return domain.Reward{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRewardLockChanged, rw.SpaceID, "reward", rw.ID, actorID, events.EventPayload{
		"locked": locked,
	}); err != nil {
		return domain.Reward{}, err
	}
	status, err := e.rollupRewardStatusTx(ctx, tx, rw.ID, actorID)
	if err != nil {
		return domain.Reward{}, err
	}
	rw.Status = status
	if err := tx.Commit(); err != nil {
		return domain.Reward{}, err
	}
	return rw, nil
}

func validateReviewerTargets(cfg *config.Config, reviewers []domain.ReviewerTarget) error {
	for _, t := range reviewers {
		if t.ID == "" {
			return fmt.Errorf("%w: reviewer target with empty id", ErrInvalidInput)
		}
		switch t.Group {
		case domain.ReviewerGroupUser:
		case domain.ReviewerGroupRole:
			if cfg != nil && !cfg.HasRole(t.ID) {
				return fmt.Errorf("%w: unknown reviewer role %q", ErrInvalidInput, t.ID)
			}
		default:
			return fmt.Errorf("%w: unknown reviewer group %q", ErrInvalidInput, t.Group)
		}
	}
	return nil
}

func validateSubmitterRoles(cfg *config.Config, policy domain.SubmitterPolicy) error {
	if policy.Kind != domain.SubmitterPolicyRoleRestricted || cfg == nil {
		return nil
	}
	if len(policy.RoleIDs) == 0 {
		return fmt.Errorf("%w: role-restricted policy needs at least one role", ErrInvalidInput)
	}
	for _, roleID := range policy.RoleIDs {
		if !cfg.HasRole(roleID) {
			return fmt.Errorf("%w: unknown submitter role %q", ErrInvalidInput, roleID)
		}
	}
	return nil
}

// IsNotFound reports whether err is the record-store not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
