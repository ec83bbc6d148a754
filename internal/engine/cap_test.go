package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bountyline/internal/domain"
)

func apps(statuses ...string) []domain.Application {
	out := make([]domain.Application, len(statuses))
	for i, s := range statuses {
		out[i] = domain.Application{ID: s, Status: s}
	}
	return out
}

func TestValidSubmission(t *testing.T) {
	valid := []string{
		domain.ApplicationStatusComplete,
		domain.ApplicationStatusPaid,
		domain.ApplicationStatusProcessing,
	}
	invalid := []string{
		domain.ApplicationStatusApplied,
		domain.ApplicationStatusInProgress,
		domain.ApplicationStatusReview,
		domain.ApplicationStatusRejected,
		domain.ApplicationStatusSubmissionRejected,
		domain.ApplicationStatusCancelled,
		"",
	}
	for _, s := range valid {
		assert.True(t, ValidSubmission(s), s)
	}
	for _, s := range invalid {
		assert.False(t, ValidSubmission(s), s)
	}
}

func TestRemainingSlots(t *testing.T) {
	two := 2
	zero := 0
	neg := -1

	tests := []struct {
		name  string
		apps  []domain.Application
		limit *int
		want  *int
	}{
		{
			name: "no cap",
			apps: apps(domain.ApplicationStatusComplete),
		},
		{
			name:  "zero cap means uncapped",
			apps:  apps(domain.ApplicationStatusComplete),
			limit: &zero,
		},
		{
			name:  "negative cap means uncapped",
			limit: &neg,
		},
		{
			name:  "empty reward",
			limit: &two,
			want:  &two,
		},
		{
			name:  "pending work consumes nothing",
			apps:  apps(domain.ApplicationStatusApplied, domain.ApplicationStatusInProgress, domain.ApplicationStatusReview),
			limit: &two,
			want:  &two,
		},
		{
			name:  "complete and processing consume",
			apps:  apps(domain.ApplicationStatusComplete, domain.ApplicationStatusProcessing),
			limit: &two,
			want:  &zero,
		},
		{
			name:  "never negative",
			apps:  apps(domain.ApplicationStatusComplete, domain.ApplicationStatusPaid, domain.ApplicationStatusProcessing),
			limit: &two,
			want:  &zero,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemainingSlots(tt.apps, tt.limit)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func TestCountValidSubmissions(t *testing.T) {
	all := apps(
		domain.ApplicationStatusApplied,
		domain.ApplicationStatusComplete,
		domain.ApplicationStatusReview,
		domain.ApplicationStatusPaid,
		domain.ApplicationStatusSubmissionRejected,
		domain.ApplicationStatusProcessing,
	)
	assert.Equal(t, 3, CountValidSubmissions(all))
	assert.Equal(t, 0, CountValidSubmissions(nil))
}
