package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bountyline/internal/domain"
)

func TestCatalog(t *testing.T) {
	ws := Catalog()
	require.Len(t, ws, 4)
	assert.Equal(t, []string{DirectSubmission, ApplicationRequired, Assigned, AssignedKYC},
		[]string{ws[0].ID, ws[1].ID, ws[2].ID, ws[3].ID})

	// four base steps, the application round adds two more up front
	assert.Len(t, ws[0].Evaluations, 4)
	require.Len(t, ws[1].Evaluations, 6)
	assert.Equal(t, StepApply, ws[1].Evaluations[0].Type)
	assert.Equal(t, StepApplicationReview, ws[1].Evaluations[1].Type)
	assert.Equal(t, StepPayment, ws[1].Evaluations[5].Type)
}

func TestGet(t *testing.T) {
	w, ok := Get(Assigned)
	require.True(t, ok)
	assert.Equal(t, "Assigned", w.Title)

	_, ok = Get("bogus")
	assert.False(t, ok)
}

func TestInfer(t *testing.T) {
	tests := []struct {
		name   string
		reward *domain.Reward
		want   string
	}{
		{
			name:   "open reward",
			reward: &domain.Reward{SubmitterPolicy: domain.OpenSubmitterPolicy()},
			want:   DirectSubmission,
		},
		{
			name:   "approval gate",
			reward: &domain.Reward{ApproveSubmitters: true, SubmitterPolicy: domain.OpenSubmitterPolicy()},
			want:   ApplicationRequired,
		},
		{
			name: "assigned",
			reward: &domain.Reward{SubmitterPolicy: domain.SubmitterPolicy{
				Kind:    domain.SubmitterPolicyAssigned,
				UserIDs: []string{"user-a"},
			}},
			want: Assigned,
		},
		{
			name: "assigned with kyc",
			reward: &domain.Reward{
				KYCRequired: true,
				SubmitterPolicy: domain.SubmitterPolicy{
					Kind:    domain.SubmitterPolicyAssigned,
					UserIDs: []string{"user-a"},
				},
			},
			want: AssignedKYC,
		},
		{
			// assignment without assignees falls back to the default flow
			name: "assigned kind without users",
			reward: &domain.Reward{SubmitterPolicy: domain.SubmitterPolicy{
				Kind: domain.SubmitterPolicyAssigned,
			}},
			want: DirectSubmission,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Infer(tt.reward)
			require.NotNil(t, w)
			assert.Equal(t, tt.want, w.ID)
		})
	}

	assert.Nil(t, Infer(nil))
}

func TestProgress(t *testing.T) {
	rw := &domain.Reward{ApproveSubmitters: true, SubmitterPolicy: domain.OpenSubmitterPolicy()}

	t.Run("nil application", func(t *testing.T) {
		w := Progress(rw, nil)
		require.NotNil(t, w)
		for _, e := range w.Evaluations {
			assert.Nil(t, e.Result, e.ID)
		}
	})

	resultsByStep := func(t *testing.T, status string) map[string]*string {
		t.Helper()
		w := Progress(rw, &domain.Application{Status: status})
		require.NotNil(t, w)
		out := make(map[string]*string, len(w.Evaluations))
		for _, e := range w.Evaluations {
			out[e.ID] = e.Result
		}
		return out
	}

	pass := ResultPass
	fail := ResultFail

	t.Run("applied", func(t *testing.T) {
		got := resultsByStep(t, domain.ApplicationStatusApplied)
		assert.Equal(t, &pass, got["apply"])
		assert.Nil(t, got["application_review"])
		assert.Nil(t, got["submit"])
	})

	t.Run("rejected application", func(t *testing.T) {
		got := resultsByStep(t, domain.ApplicationStatusRejected)
		assert.Equal(t, &fail, got["application_review"])
		assert.Nil(t, got["submit"])
	})

	t.Run("in review", func(t *testing.T) {
		got := resultsByStep(t, domain.ApplicationStatusReview)
		assert.Equal(t, &pass, got["application_review"])
		assert.Equal(t, &pass, got["submit"])
		assert.Nil(t, got["review"])
	})

	t.Run("submission rejected", func(t *testing.T) {
		got := resultsByStep(t, domain.ApplicationStatusSubmissionRejected)
		assert.Equal(t, &fail, got["review"])
		assert.Nil(t, got["credential"])
	})

	t.Run("complete", func(t *testing.T) {
		got := resultsByStep(t, domain.ApplicationStatusComplete)
		assert.Equal(t, &pass, got["review"])
		assert.Nil(t, got["credential"])
		assert.Nil(t, got["payment"])
	})

	t.Run("processing", func(t *testing.T) {
		got := resultsByStep(t, domain.ApplicationStatusProcessing)
		assert.Equal(t, &pass, got["credential"])
		assert.Nil(t, got["payment"])
	})

	t.Run("paid", func(t *testing.T) {
		got := resultsByStep(t, domain.ApplicationStatusPaid)
		assert.Equal(t, &pass, got["review"])
		assert.Equal(t, &pass, got["credential"])
		assert.Equal(t, &pass, got["payment"])
	})
}
