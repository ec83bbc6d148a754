package engine

import "bountyline/internal/domain"

// ValidSubmission reports whether an application status counts against the
// submission cap. Applied/in-progress/review work does not consume a slot
// until it is accepted, and rejected or cancelled attempts never do.
func ValidSubmission(status string) bool {
	switch status {
	case domain.ApplicationStatusComplete, domain.ApplicationStatusPaid, domain.ApplicationStatusProcessing:
		return true
	}
	return false
}

// CountValidSubmissions counts cap-consuming applications.
func CountValidSubmissions(apps []domain.Application) int {
	n := 0
	for _, a := range apps {
		if ValidSubmission(a.Status) {
			n++
		}
	}
	return n
}

// RemainingSlots returns how many more valid submissions the reward will
// accept, or nil when it carries no cap. Never negative.
//
// A zero result means "cap reached": new applications must be refused, but
// status transitions of applications already counted must still proceed.
func RemainingSlots(apps []domain.Application, limit *int) *int {
	if limit == nil || *limit <= 0 {
		return nil
	}
	remaining := *limit - CountValidSubmissions(apps)
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
