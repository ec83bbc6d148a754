package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bountyline/internal/domain"
	"bountyline/internal/workflow"
)

func tokenReward() domain.Reward {
	amount := 100.0
	chain := int64(1)
	token := "USDC"
	return domain.Reward{
		Title:           "Build the thing",
		ChainID:         &chain,
		RewardToken:     &token,
		RewardAmount:    &amount,
		SubmitterPolicy: domain.OpenSubmitterPolicy(),
		Reviewers:       []domain.ReviewerTarget{{Group: domain.ReviewerGroupUser, ID: "rev"}},
	}
}

func TestRewardErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Reward)
		input  func(domain.Reward) RewardValidationInput
		want   []string
	}{
		{
			name: "valid token reward",
		},
		{
			name: "amount without chain and token",
			mutate: func(rw *domain.Reward) {
				rw.ChainID = nil
				rw.RewardToken = nil
			},
			want: []string{"Reward amount must have a chain and token assigned"},
		},
		{
			name: "negative amount",
			mutate: func(rw *domain.Reward) {
				neg := -5.0
				rw.RewardAmount = &neg
			},
			want: []string{"Reward amount must be a positive number"},
		},
		{
			name: "missing title",
			mutate: func(rw *domain.Reward) {
				rw.Title = ""
			},
			want: []string{"Page title is required"},
		},
		{
			name: "external page title substitutes",
			mutate: func(rw *domain.Reward) {
				rw.Title = ""
			},
			input: func(rw domain.Reward) RewardValidationInput {
				return RewardValidationInput{Reward: rw, PageTitle: "Linked page"}
			},
		},
		{
			name: "no reviewers",
			mutate: func(rw *domain.Reward) {
				rw.Reviewers = nil
			},
			want: []string{"At least one reviewer is required"},
		},
		{
			name: "templates skip reviewer check",
			mutate: func(rw *domain.Reward) {
				rw.Reviewers = nil
				rw.IsTemplate = true
			},
		},
		{
			name: "assigned without assignees",
			mutate: func(rw *domain.Reward) {
				rw.SubmitterPolicy = domain.SubmitterPolicy{Kind: domain.SubmitterPolicyAssigned}
			},
			want: []string{"At least one assigned applicant is required"},
		},
		{
			name: "milestone without template",
			mutate: func(rw *domain.Reward) {
				rw.IsMilestone = true
			},
			want: []string{"Milestone rewards require a template"},
		},
		{
			name: "custom reward type requires text",
			input: func(rw domain.Reward) RewardValidationInput {
				return RewardValidationInput{Reward: rw, RewardType: domain.RewardTypeCustom}
			},
			want: []string{"Custom reward is required"},
		},
		{
			name: "token reward type requires full payout",
			mutate: func(rw *domain.Reward) {
				rw.RewardAmount = nil
			},
			input: func(rw domain.Reward) RewardValidationInput {
				return RewardValidationInput{Reward: rw, RewardType: domain.RewardTypeToken}
			},
			want: []string{"Token reward requires a chain, token and amount"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := tokenReward()
			if tt.mutate != nil {
				tt.mutate(&rw)
			}
			in := RewardValidationInput{Reward: rw}
			if tt.input != nil {
				in = tt.input(rw)
			}
			assert.Equal(t, tt.want, RewardErrors(in))
		})
	}
}

func TestEvaluationFormError(t *testing.T) {
	rw := tokenReward()

	assert.Empty(t, EvaluationFormError(workflow.Evaluation{Type: workflow.StepReview, Title: "Submission review"}, rw))
	assert.Empty(t, EvaluationFormError(workflow.Evaluation{Type: workflow.StepPayment}, rw))
	assert.Empty(t, EvaluationFormError(workflow.Evaluation{Type: workflow.StepSubmit}, rw))

	noReviewers := rw
	noReviewers.Reviewers = nil
	assert.Equal(t,
		`Reviewers are required for the "Submission review" step`,
		EvaluationFormError(workflow.Evaluation{Type: workflow.StepReview, Title: "Submission review"}, noReviewers))

	noPayout := rw
	noPayout.RewardAmount = nil
	noPayout.ChainID = nil
	noPayout.RewardToken = nil
	assert.Equal(t,
		"A token or custom reward is required for the payment step",
		EvaluationFormError(workflow.Evaluation{Type: workflow.StepPayment}, noPayout))

	brokenPayout := rw
	brokenPayout.ChainID = nil
	assert.Equal(t,
		"Reward amount must have a chain and token assigned",
		EvaluationFormError(workflow.Evaluation{Type: workflow.StepPayment}, brokenPayout))
}

func TestNormalizeSubmitterPolicy(t *testing.T) {
	five := 5

	t.Run("assigned", func(t *testing.T) {
		rw := domain.Reward{
			ApproveSubmitters:         true,
			AllowMultipleApplications: true,
			MaxSubmissions:            &five,
			SubmitterPolicy: domain.SubmitterPolicy{
				Kind:    domain.SubmitterPolicyAssigned,
				RoleIDs: []string{"builders"},
				UserIDs: []string{"user-a"},
			},
		}
		normalizeSubmitterPolicy(&rw)
		assert.False(t, rw.ApproveSubmitters)
		assert.False(t, rw.AllowMultipleApplications)
		if assert.NotNil(t, rw.MaxSubmissions) {
			assert.Equal(t, 1, *rw.MaxSubmissions)
		}
		assert.Empty(t, rw.SubmitterPolicy.RoleIDs)
		assert.Equal(t, []string{"user-a"}, rw.SubmitterPolicy.UserIDs)
	})

	t.Run("role restricted drops user ids", func(t *testing.T) {
		rw := domain.Reward{SubmitterPolicy: domain.SubmitterPolicy{
			Kind:    domain.SubmitterPolicyRoleRestricted,
			RoleIDs: []string{"builders"},
			UserIDs: []string{"user-a"},
		}}
		normalizeSubmitterPolicy(&rw)
		assert.Equal(t, []string{"builders"}, rw.SubmitterPolicy.RoleIDs)
		assert.Empty(t, rw.SubmitterPolicy.UserIDs)
	})

	t.Run("empty kind becomes open", func(t *testing.T) {
		rw := domain.Reward{}
		normalizeSubmitterPolicy(&rw)
		assert.Equal(t, domain.SubmitterPolicyOpen, rw.SubmitterPolicy.Kind)
	})
}
