package engine

import (
	"fmt"

	"bountyline/internal/domain"
)

// Review decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Reviewable reports whether an application status accepts a review
// decision.
func Reviewable(status string) bool {
	switch status {
	case domain.ApplicationStatusApplied, domain.ApplicationStatusInProgress, domain.ApplicationStatusReview:
		return true
	}
	return false
}

// reviewTransition computes the next application status for a decision.
// acceptance is true when the transition accepts the application itself
// (AcceptedBy); otherwise the decision verdicts the submission
// (ReviewedBy).
func reviewTransition(current, decision string) (next string, acceptance bool, err error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return "", false, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, decision)
	}
	if !Reviewable(current) {
		return "", false, fmt.Errorf("%w: application status %s is not reviewable", ErrWrongState, current)
	}
	switch current {
	case domain.ApplicationStatusApplied:
		if decision == DecisionApprove {
			return domain.ApplicationStatusInProgress, true, nil
		}
		return domain.ApplicationStatusRejected, false, nil
	default: // inProgress, review
		if decision == DecisionApprove {
			return domain.ApplicationStatusComplete, false, nil
		}
		return domain.ApplicationStatusSubmissionRejected, false, nil
	}
}

// rejectedStatusFor maps a non-terminal application to the rejection
// status it receives when the cap closes around it: an unanswered
// application is rejected outright, started work gets its submission
// rejected.
func rejectedStatusFor(current string) (string, bool) {
	switch current {
	case domain.ApplicationStatusApplied:
		return domain.ApplicationStatusRejected, true
	case domain.ApplicationStatusInProgress, domain.ApplicationStatusReview:
		return domain.ApplicationStatusSubmissionRejected, true
	}
	return "", false
}
