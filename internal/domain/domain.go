package domain

// Reward aggregate statuses.
const (
	RewardStatusSuggestion = "suggestion"
	RewardStatusOpen       = "open"
	RewardStatusInProgress = "inProgress"
	RewardStatusComplete   = "complete"
	RewardStatusPaid       = "paid"
	RewardStatusCancelled  = "cancelled"
)

// Application statuses.
const (
	ApplicationStatusApplied            = "applied"
	ApplicationStatusInProgress         = "inProgress"
	ApplicationStatusReview             = "review"
	ApplicationStatusSubmissionRejected = "submission_rejected"
	ApplicationStatusRejected           = "rejected"
	ApplicationStatusComplete           = "complete"
	ApplicationStatusProcessing         = "processing"
	ApplicationStatusPaid               = "paid"
	ApplicationStatusCancelled          = "cancelled"
)

// Payout kind derived from the reward's payout descriptor.
const (
	RewardTypeNone   = "none"
	RewardTypeToken  = "token"
	RewardTypeCustom = "custom"
)

// Submitter policy kinds.
const (
	SubmitterPolicyOpen           = "open"
	SubmitterPolicyRoleRestricted = "role_restricted"
	SubmitterPolicyAssigned       = "assigned"
)

// Reviewer target groups.
const (
	ReviewerGroupRole = "role"
	ReviewerGroupUser = "user"
)

type Space struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// SubmitterPolicy says who may submit work against a reward. Exactly one
// variant applies, so the role list and user list can never both be set.
type SubmitterPolicy struct {
	Kind    string   `json:"kind" enum:"open,role_restricted,assigned"`
	RoleIDs []string `json:"role_ids,omitempty"`
	UserIDs []string `json:"user_ids,omitempty"`
}

func OpenSubmitterPolicy() SubmitterPolicy {
	return SubmitterPolicy{Kind: SubmitterPolicyOpen}
}

func (p SubmitterPolicy) Assigned() bool {
	return p.Kind == SubmitterPolicyAssigned
}

type ReviewerTarget struct {
	Group string `json:"group" enum:"role,user"`
	ID    string `json:"id"`
}

type Reward struct {
	ID      string `json:"id"`
	SpaceID string `json:"space_id"`
	Title   string `json:"title,omitempty"`
	Status  string `json:"status" enum:"suggestion,open,inProgress,complete,paid,cancelled"`

	ChainID      *int64   `json:"chain_id,omitempty"`
	RewardToken  *string  `json:"reward_token,omitempty"`
	RewardAmount *float64 `json:"reward_amount,omitempty"`
	CustomReward *string  `json:"custom_reward,omitempty"`

	ApproveSubmitters         bool    `json:"approve_submitters"`
	AllowMultipleApplications bool    `json:"allow_multiple_applications"`
	MaxSubmissions            *int    `json:"max_submissions,omitempty"`
	DueDate                   *string `json:"due_date,omitempty" format:"date-time"`
	SubmissionsLocked         bool    `json:"submissions_locked"`
	KYCRequired               bool    `json:"kyc_required"`

	SubmitterPolicy SubmitterPolicy  `json:"submitter_policy"`
	Reviewers       []ReviewerTarget `json:"reviewers,omitempty"`

	FieldsJSON  *string `json:"fields_json,omitempty"`
	PageID      *string `json:"page_id,omitempty"`
	ProposalID  *string `json:"proposal_id,omitempty"`
	TemplateID  *string `json:"template_id,omitempty"`
	IsTemplate  bool    `json:"is_template"`
	IsMilestone bool    `json:"is_milestone"`

	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// RewardType classifies the payout descriptor. A custom description wins
// over token fields so a reward never reports both.
func (r Reward) RewardType() string {
	if r.CustomReward != nil && *r.CustomReward != "" {
		return RewardTypeCustom
	}
	if r.RewardAmount != nil || r.RewardToken != nil || r.ChainID != nil {
		return RewardTypeToken
	}
	return RewardTypeNone
}

type Application struct {
	ID        string `json:"id"`
	RewardID  string `json:"reward_id"`
	SpaceID   string `json:"space_id"`
	CreatedBy string `json:"created_by"`
	Status    string `json:"status" enum:"applied,inProgress,review,submission_rejected,rejected,complete,processing,paid,cancelled"`

	Message         string  `json:"message,omitempty"`
	Submission      *string `json:"submission,omitempty"`
	SubmissionNodes *string `json:"submission_nodes,omitempty"`
	WalletAddress   *string `json:"wallet_address,omitempty"`
	RewardInfo      *string `json:"reward_info,omitempty"`

	AcceptedBy *string `json:"accepted_by,omitempty"`
	ReviewedBy *string `json:"reviewed_by,omitempty"`

	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	SpaceID    string `json:"space_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
