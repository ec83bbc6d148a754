package server

import (
	"encoding/json"

	"bountyline/internal/config"
	"bountyline/internal/domain"
	"bountyline/internal/workflow"
)

// Request payloads

type CreateSpaceRequest struct {
	ID   string  `json:"id"`
	Name *string `json:"name,omitempty"`
}

type SubmitterPolicyRequest struct {
	Kind    string   `json:"kind" enum:"open,role_restricted,assigned"`
	RoleIDs []string `json:"role_ids,omitempty"`
	UserIDs []string `json:"user_ids,omitempty"`
}

type ReviewerTargetRequest struct {
	Group string `json:"group" enum:"role,user"`
	ID    string `json:"id"`
}

type CreateRewardRequest struct {
	ID           *string  `json:"id,omitempty"`
	Title        string   `json:"title,omitempty"`
	Status       string   `json:"status,omitempty" enum:"suggestion,open"`
	ChainID      *int64   `json:"chain_id,omitempty"`
	RewardToken  *string  `json:"reward_token,omitempty"`
	RewardAmount *float64 `json:"reward_amount,omitempty"`
	CustomReward *string  `json:"custom_reward,omitempty"`

	ApproveSubmitters         bool `json:"approve_submitters,omitempty"`
	AllowMultipleApplications bool `json:"allow_multiple_applications,omitempty"`
	MaxSubmissions            *int `json:"max_submissions,omitempty"`
	KYCRequired               bool `json:"kyc_required,omitempty"`

	DueDate         *string                 `json:"due_date,omitempty" format:"date-time"`
	SubmitterPolicy *SubmitterPolicyRequest `json:"submitter_policy,omitempty"`
	Reviewers       []ReviewerTargetRequest `json:"reviewers,omitempty"`
	Fields          map[string]any          `json:"fields,omitempty"`
	PageID          *string                 `json:"page_id,omitempty"`
	ProposalID      *string                 `json:"proposal_id,omitempty"`
	TemplateID      *string                 `json:"template_id,omitempty"`
	IsTemplate      bool                    `json:"is_template,omitempty"`
	IsMilestone     bool                    `json:"is_milestone,omitempty"`
}

type UpdateRewardRequest struct {
	Title        *string  `json:"title,omitempty"`
	ChainID      *int64   `json:"chain_id,omitempty"`
	RewardToken  *string  `json:"reward_token,omitempty"`
	RewardAmount *float64 `json:"reward_amount,omitempty"`
	CustomReward *string  `json:"custom_reward,omitempty"`

	ApproveSubmitters         *bool `json:"approve_submitters,omitempty"`
	AllowMultipleApplications *bool `json:"allow_multiple_applications,omitempty"`
	MaxSubmissions            *int  `json:"max_submissions,omitempty"`
	KYCRequired               *bool `json:"kyc_required,omitempty"`

	DueDate         *string                 `json:"due_date,omitempty" format:"date-time"`
	SubmitterPolicy *SubmitterPolicyRequest `json:"submitter_policy,omitempty"`
	Reviewers       []ReviewerTargetRequest `json:"reviewers,omitempty"`
	Fields          map[string]any          `json:"fields,omitempty"`
}

type PublishRewardRequest struct {
	Reviewers       []ReviewerTargetRequest `json:"reviewers,omitempty"`
	SubmitterPolicy *SubmitterPolicyRequest `json:"submitter_policy,omitempty"`
	PageTitle       *string                 `json:"page_title,omitempty"`
}

type SetRewardUsersRequest struct {
	Reviewers       []ReviewerTargetRequest `json:"reviewers,omitempty"`
	SubmitterPolicy *SubmitterPolicyRequest `json:"submitter_policy,omitempty"`
}

type LockSubmissionsRequest struct {
	Locked bool `json:"locked"`
}

type CreateApplicationRequest struct {
	ID              *string `json:"id,omitempty"`
	Message         string  `json:"message,omitempty"`
	Submission      *string `json:"submission,omitempty"`
	SubmissionNodes *string `json:"submission_nodes,omitempty"`
	WalletAddress   *string `json:"wallet_address,omitempty"`
}

type UpdateApplicationRequest struct {
	Message         *string `json:"message,omitempty"`
	Submission      *string `json:"submission,omitempty"`
	SubmissionNodes *string `json:"submission_nodes,omitempty"`
	WalletAddress   *string `json:"wallet_address,omitempty"`
	RewardInfo      *string `json:"reward_info,omitempty"`
}

type ReviewApplicationRequest struct {
	Decision string `json:"decision" enum:"approve,reject"`
}

// Response payloads

type SpaceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type SubmitterPolicyResponse struct {
	Kind    string   `json:"kind" enum:"open,role_restricted,assigned"`
	RoleIDs []string `json:"role_ids,omitempty"`
	UserIDs []string `json:"user_ids,omitempty"`
}

type ReviewerTargetResponse struct {
	Group string `json:"group" enum:"role,user"`
	ID    string `json:"id"`
}

type RewardResponse struct {
	ID           string   `json:"id"`
	SpaceID      string   `json:"space_id"`
	Title        string   `json:"title,omitempty"`
	Status       string   `json:"status" enum:"suggestion,open,inProgress,complete,paid,cancelled"`
	RewardType   string   `json:"reward_type" enum:"none,token,custom"`
	ChainID      *int64   `json:"chain_id,omitempty"`
	RewardToken  *string  `json:"reward_token,omitempty"`
	RewardAmount *float64 `json:"reward_amount,omitempty"`
	CustomReward *string  `json:"custom_reward,omitempty"`

	ApproveSubmitters         bool `json:"approve_submitters"`
	AllowMultipleApplications bool `json:"allow_multiple_applications"`
	MaxSubmissions            *int `json:"max_submissions,omitempty"`
	SubmissionsLocked         bool `json:"submissions_locked"`
	KYCRequired               bool `json:"kyc_required"`

	DueDate         *string                  `json:"due_date,omitempty" format:"date-time"`
	SubmitterPolicy SubmitterPolicyResponse  `json:"submitter_policy"`
	Reviewers       []ReviewerTargetResponse `json:"reviewers"`
	Fields          map[string]any           `json:"fields,omitempty"`
	PageID          *string                  `json:"page_id,omitempty"`
	ProposalID      *string                  `json:"proposal_id,omitempty"`
	TemplateID      *string                  `json:"template_id,omitempty"`
	IsTemplate      bool                     `json:"is_template"`
	IsMilestone     bool                     `json:"is_milestone"`

	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type ApplicationResponse struct {
	ID              string  `json:"id"`
	RewardID        string  `json:"reward_id"`
	SpaceID         string  `json:"space_id"`
	CreatedBy       string  `json:"created_by"`
	Status          string  `json:"status" enum:"applied,inProgress,review,submission_rejected,rejected,complete,processing,paid,cancelled"`
	Message         string  `json:"message,omitempty"`
	Submission      *string `json:"submission,omitempty"`
	SubmissionNodes *string `json:"submission_nodes,omitempty"`
	WalletAddress   *string `json:"wallet_address,omitempty"`
	RewardInfo      *string `json:"reward_info,omitempty"`
	AcceptedBy      *string `json:"accepted_by,omitempty"`
	ReviewedBy      *string `json:"reviewed_by,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

type EvaluationResponse struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Type   string  `json:"type"`
	Result *string `json:"result,omitempty" enum:"pass,fail"`
}

type WorkflowResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Evaluations []EvaluationResponse `json:"evaluations"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	SpaceID    string         `json:"space_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type SpaceConfigResponse struct {
	Space struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"space"`
	Roles    map[string]roleConfigSection `json:"roles"`
	Defaults struct {
		ApproveSubmitters         bool `json:"approve_submitters"`
		AllowMultipleApplications bool `json:"allow_multiple_applications"`
		MaxSubmissions            *int `json:"max_submissions,omitempty"`
	} `json:"defaults"`
}

type roleConfigSection struct {
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members"`
}

type paginatedRewards struct {
	Items      []RewardResponse `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type paginatedApplications struct {
	Items      []ApplicationResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func spaceResponse(s domain.Space) SpaceResponse {
	return SpaceResponse(s)
}

func rewardResponse(rw domain.Reward) RewardResponse {
	reviewers := make([]ReviewerTargetResponse, 0, len(rw.Reviewers))
	for _, t := range rw.Reviewers {
		reviewers = append(reviewers, ReviewerTargetResponse{Group: t.Group, ID: t.ID})
	}
	return RewardResponse{
		ID:                        rw.ID,
		SpaceID:                   rw.SpaceID,
		Title:                     rw.Title,
		Status:                    rw.Status,
		RewardType:                rw.RewardType(),
		ChainID:                   rw.ChainID,
		RewardToken:               rw.RewardToken,
		RewardAmount:              rw.RewardAmount,
		CustomReward:              rw.CustomReward,
		ApproveSubmitters:         rw.ApproveSubmitters,
		AllowMultipleApplications: rw.AllowMultipleApplications,
		MaxSubmissions:            rw.MaxSubmissions,
		SubmissionsLocked:         rw.SubmissionsLocked,
		KYCRequired:               rw.KYCRequired,
		DueDate:                   rw.DueDate,
		SubmitterPolicy: SubmitterPolicyResponse{
			Kind:    rw.SubmitterPolicy.Kind,
			RoleIDs: rw.SubmitterPolicy.RoleIDs,
			UserIDs: rw.SubmitterPolicy.UserIDs,
		},
		Reviewers:   reviewers,
		Fields:      decodeJSONMap(rw.FieldsJSON),
		PageID:      rw.PageID,
		ProposalID:  rw.ProposalID,
		TemplateID:  rw.TemplateID,
		IsTemplate:  rw.IsTemplate,
		IsMilestone: rw.IsMilestone,
		CreatedBy:   rw.CreatedBy,
		CreatedAt:   rw.CreatedAt,
		UpdatedAt:   rw.UpdatedAt,
	}
}

func applicationResponse(a domain.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:              a.ID,
		RewardID:        a.RewardID,
		SpaceID:         a.SpaceID,
		CreatedBy:       a.CreatedBy,
		Status:          a.Status,
		Message:         a.Message,
		Submission:      a.Submission,
		SubmissionNodes: a.SubmissionNodes,
		WalletAddress:   a.WalletAddress,
		RewardInfo:      a.RewardInfo,
		AcceptedBy:      a.AcceptedBy,
		ReviewedBy:      a.ReviewedBy,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func workflowResponse(w workflow.Workflow) WorkflowResponse {
	evals := make([]EvaluationResponse, 0, len(w.Evaluations))
	for _, ev := range w.Evaluations {
		evals = append(evals, EvaluationResponse{
			ID:     ev.ID,
			Title:  ev.Title,
			Type:   ev.Type,
			Result: ev.Result,
		})
	}
	return WorkflowResponse{ID: w.ID, Title: w.Title, Evaluations: evals}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		SpaceID:    e.SpaceID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(strPtr(e.Payload)),
	}
}

func configResponse(cfg *config.Config) SpaceConfigResponse {
	res := SpaceConfigResponse{Roles: map[string]roleConfigSection{}}
	res.Space.ID = cfg.Space.ID
	res.Space.Name = cfg.Space.Name
	for id, role := range cfg.Roles {
		res.Roles[id] = roleConfigSection{
			Description: role.Description,
			Members:     nonNilSlice(role.Members),
		}
	}
	res.Defaults.ApproveSubmitters = cfg.Defaults.ApproveSubmitters
	res.Defaults.AllowMultipleApplications = cfg.Defaults.AllowMultipleApplications
	res.Defaults.MaxSubmissions = cfg.Defaults.MaxSubmissions
	return res
}

func submitterPolicyFromRequest(req *SubmitterPolicyRequest) *domain.SubmitterPolicy {
	if req == nil {
		return nil
	}
	return &domain.SubmitterPolicy{
		Kind:    req.Kind,
		RoleIDs: req.RoleIDs,
		UserIDs: req.UserIDs,
	}
}

func reviewersFromRequest(reqs []ReviewerTargetRequest) []domain.ReviewerTarget {
	if reqs == nil {
		return nil
	}
	out := make([]domain.ReviewerTarget, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, domain.ReviewerTarget{Group: r.Group, ID: r.ID})
	}
	return out
}

// JSON helpers

func decodeJSONMap(raw *string) map[string]any {
	if raw == nil || *raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(*raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func strPtr(in string) *string {
	return &in
}
