package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bountyline/internal/domain"
)

func TestComputeRewardStatus(t *testing.T) {
	one := 1
	two := 2

	tests := []struct {
		name    string
		current string
		apps    []domain.Application
		cap     *int
		want    string
	}{
		{
			name:    "suggestion untouched",
			current: domain.RewardStatusSuggestion,
			apps:    apps(domain.ApplicationStatusComplete),
			cap:     &one,
			want:    domain.RewardStatusSuggestion,
		},
		{
			name:    "cancelled untouched",
			current: domain.RewardStatusCancelled,
			apps:    apps(domain.ApplicationStatusComplete),
			cap:     &one,
			want:    domain.RewardStatusCancelled,
		},
		{
			name:    "uncapped stays open",
			current: domain.RewardStatusOpen,
			apps:    apps(domain.ApplicationStatusComplete, domain.ApplicationStatusComplete),
			want:    domain.RewardStatusOpen,
		},
		{
			name:    "slots remaining stays open",
			current: domain.RewardStatusOpen,
			apps:    apps(domain.ApplicationStatusComplete),
			cap:     &two,
			want:    domain.RewardStatusOpen,
		},
		{
			name:    "cap filled by complete",
			current: domain.RewardStatusOpen,
			apps:    apps(domain.ApplicationStatusComplete),
			cap:     &one,
			want:    domain.RewardStatusComplete,
		},
		{
			name:    "cap filled and all paid",
			current: domain.RewardStatusComplete,
			apps:    apps(domain.ApplicationStatusPaid, domain.ApplicationStatusRejected),
			cap:     &one,
			want:    domain.RewardStatusPaid,
		},
		{
			name:    "cap filled by processing",
			current: domain.RewardStatusOpen,
			apps:    apps(domain.ApplicationStatusProcessing),
			cap:     &one,
			want:    domain.RewardStatusInProgress,
		},
		{
			name:    "complete wins over paid siblings",
			current: domain.RewardStatusOpen,
			apps:    apps(domain.ApplicationStatusPaid, domain.ApplicationStatusComplete),
			cap:     &two,
			want:    domain.RewardStatusComplete,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRewardStatus(tt.current, tt.apps, tt.cap)
			assert.Equal(t, tt.want, got)

			// recomputing from the result must not move it again
			assert.Equal(t, got, ComputeRewardStatus(got, tt.apps, tt.cap))
		})
	}
}
