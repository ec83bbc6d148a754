package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bountyline/internal/domain"
)

func TestReviewTransition(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		decision   string
		next       string
		acceptance bool
		wantErr    error
	}{
		{
			name:       "approve application",
			current:    domain.ApplicationStatusApplied,
			decision:   DecisionApprove,
			next:       domain.ApplicationStatusInProgress,
			acceptance: true,
		},
		{
			name:     "reject application",
			current:  domain.ApplicationStatusApplied,
			decision: DecisionReject,
			next:     domain.ApplicationStatusRejected,
		},
		{
			name:     "approve submission from review",
			current:  domain.ApplicationStatusReview,
			decision: DecisionApprove,
			next:     domain.ApplicationStatusComplete,
		},
		{
			name:     "reject submission from review",
			current:  domain.ApplicationStatusReview,
			decision: DecisionReject,
			next:     domain.ApplicationStatusSubmissionRejected,
		},
		{
			name:     "approve straight from in progress",
			current:  domain.ApplicationStatusInProgress,
			decision: DecisionApprove,
			next:     domain.ApplicationStatusComplete,
		},
		{
			name:     "complete is terminal",
			current:  domain.ApplicationStatusComplete,
			decision: DecisionApprove,
			wantErr:  ErrWrongState,
		},
		{
			name:     "rejected is terminal",
			current:  domain.ApplicationStatusRejected,
			decision: DecisionReject,
			wantErr:  ErrWrongState,
		},
		{
			name:     "unknown decision",
			current:  domain.ApplicationStatusReview,
			decision: "maybe",
			wantErr:  ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, acceptance, err := reviewTransition(tt.current, tt.decision)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, next)
			assert.Equal(t, tt.acceptance, acceptance)
		})
	}
}

func TestRejectedStatusFor(t *testing.T) {
	status, ok := rejectedStatusFor(domain.ApplicationStatusApplied)
	require.True(t, ok)
	assert.Equal(t, domain.ApplicationStatusRejected, status)

	for _, s := range []string{domain.ApplicationStatusInProgress, domain.ApplicationStatusReview} {
		status, ok = rejectedStatusFor(s)
		require.True(t, ok, s)
		assert.Equal(t, domain.ApplicationStatusSubmissionRejected, status, s)
	}

	for _, s := range []string{
		domain.ApplicationStatusComplete,
		domain.ApplicationStatusPaid,
		domain.ApplicationStatusProcessing,
		domain.ApplicationStatusRejected,
		domain.ApplicationStatusCancelled,
	} {
		_, ok = rejectedStatusFor(s)
		assert.False(t, ok, s)
	}
}
