package engine

import (
	"fmt"

	"bountyline/internal/domain"
	"bountyline/internal/workflow"
)

// RewardValidationInput carries the reward plus context the reward record
// itself does not know: the title of an externally linked page and the
// payout kind the caller intends.
type RewardValidationInput struct {
	Reward     domain.Reward
	RewardType string
	PageTitle  string
}

// RewardErrors returns human-readable validation errors for a reward
// configuration; an empty list means the reward may be published. Run
// before publish and before workflow-step completion.
func RewardErrors(in RewardValidationInput) []string {
	rw := in.Reward
	rewardType := in.RewardType
	if rewardType == "" {
		rewardType = rw.RewardType()
	}
	errs := payoutErrors(rw, rewardType)

	if rw.Title == "" && in.PageTitle == "" && rw.PageID == nil {
		errs = append(errs, "Page title is required")
	}
	if !rw.IsTemplate && !isProposalTemplate(rw) {
		if len(rw.Reviewers) == 0 {
			errs = append(errs, "At least one reviewer is required")
		}
		if rw.SubmitterPolicy.Assigned() && len(rw.SubmitterPolicy.UserIDs) == 0 {
			errs = append(errs, "At least one assigned applicant is required")
		}
	}
	if rw.IsMilestone && (rw.TemplateID == nil || *rw.TemplateID == "") {
		errs = append(errs, "Milestone rewards require a template")
	}
	return errs
}

func payoutErrors(rw domain.Reward, rewardType string) []string {
	var errs []string
	if rw.RewardAmount != nil && *rw.RewardAmount < 0 {
		errs = append(errs, "Reward amount must be a positive number")
	}
	if rw.RewardAmount != nil && *rw.RewardAmount > 0 {
		if rw.ChainID == nil || rw.RewardToken == nil || *rw.RewardToken == "" {
			errs = append(errs, "Reward amount must have a chain and token assigned")
		}
	}
	switch rewardType {
	case domain.RewardTypeCustom:
		if rw.CustomReward == nil || *rw.CustomReward == "" {
			errs = append(errs, "Custom reward is required")
		}
	case domain.RewardTypeToken:
		if rw.RewardAmount == nil || rw.ChainID == nil || rw.RewardToken == nil || *rw.RewardToken == "" {
			errs = append(errs, "Token reward requires a chain, token and amount")
		}
	}
	return errs
}

func isProposalTemplate(rw domain.Reward) bool {
	return rw.IsTemplate && rw.ProposalID != nil
}

// EvaluationFormError validates a single workflow step mid-flight. An
// empty string means the step's precondition holds.
func EvaluationFormError(eval workflow.Evaluation, rw domain.Reward) string {
	switch eval.Type {
	case workflow.StepApplicationReview, workflow.StepReview:
		if len(rw.Reviewers) == 0 {
			return fmt.Sprintf("Reviewers are required for the %q step", eval.Title)
		}
	case workflow.StepPayment:
		if errs := payoutErrors(rw, rw.RewardType()); len(errs) > 0 {
			return errs[0]
		}
		if rw.RewardType() == domain.RewardTypeNone {
			return "A token or custom reward is required for the payment step"
		}
	}
	return ""
}

// normalizeSubmitterPolicy enforces the assignment invariants: a reward
// with assigned submitters needs no application round, accepts exactly one
// submission and exactly one submission slot.
func normalizeSubmitterPolicy(rw *domain.Reward) {
	switch rw.SubmitterPolicy.Kind {
	case domain.SubmitterPolicyAssigned:
		rw.SubmitterPolicy.RoleIDs = nil
		rw.ApproveSubmitters = false
		rw.AllowMultipleApplications = false
		one := 1
		rw.MaxSubmissions = &one
	case domain.SubmitterPolicyRoleRestricted:
		rw.SubmitterPolicy.UserIDs = nil
	case "":
		rw.SubmitterPolicy = domain.OpenSubmitterPolicy()
	default:
		rw.SubmitterPolicy.RoleIDs = nil
		rw.SubmitterPolicy.UserIDs = nil
	}
}

func validSubmitterPolicyKind(kind string) bool {
	switch kind {
	case domain.SubmitterPolicyOpen, domain.SubmitterPolicyRoleRestricted, domain.SubmitterPolicyAssigned:
		return true
	}
	return false
}
