// Package workflow describes the fixed evaluation sequences a reward's
// applications move through. The catalog is static; which workflow applies
// follows from the reward's submitter policy and approval flag. Nothing
// here mutates data, the engine derives progress views from it.
package workflow

import "bountyline/internal/domain"

// Workflow ids.
const (
	DirectSubmission    = "direct_submission"
	ApplicationRequired = "application_required"
	Assigned            = "assigned"
	AssignedKYC         = "assigned_kyc"
)

// Evaluation step types.
const (
	StepApply             = "apply"
	StepApplicationReview = "application_review"
	StepSubmit            = "submit"
	StepReview            = "review"
	StepCredential        = "credential"
	StepPayment           = "payment"
)

// Step results.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

type Evaluation struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Type   string  `json:"type" enum:"apply,application_review,submit,review,credential,payment"`
	Result *string `json:"result,omitempty" enum:"pass,fail"`
}

type Workflow struct {
	ID          string       `json:"id" enum:"direct_submission,application_required,assigned,assigned_kyc"`
	Title       string       `json:"title"`
	Evaluations []Evaluation `json:"evaluations"`
}

func step(id, title, typ string) Evaluation {
	return Evaluation{ID: id, Title: title, Type: typ}
}

func submitTail() []Evaluation {
	return []Evaluation{
		step("submit", "Submit work", StepSubmit),
		step("review", "Submission review", StepReview),
		step("credential", "Credential", StepCredential),
		step("payment", "Payment", StepPayment),
	}
}

// Catalog returns the four supported workflows in a stable order.
func Catalog() []Workflow {
	return []Workflow{
		{ID: DirectSubmission, Title: "Direct submission", Evaluations: submitTail()},
		{
			ID:    ApplicationRequired,
			Title: "Application required",
			Evaluations: append([]Evaluation{
				step("apply", "Apply", StepApply),
				step("application_review", "Application review", StepApplicationReview),
			}, submitTail()...),
		},
		{ID: Assigned, Title: "Assigned", Evaluations: submitTail()},
		// Same shape as assigned; payment is additionally gated on
		// identity verification by the external credential service.
		{ID: AssignedKYC, Title: "Assigned with KYC", Evaluations: submitTail()},
	}
}

// Get looks up a workflow by id.
func Get(id string) (Workflow, bool) {
	for _, w := range Catalog() {
		if w.ID == id {
			return w, true
		}
	}
	return Workflow{}, false
}

// Infer chooses the workflow for a reward's configuration. Returns nil for
// a nil reward.
func Infer(r *domain.Reward) *Workflow {
	if r == nil {
		return nil
	}
	id := DirectSubmission
	if r.SubmitterPolicy.Assigned() && len(r.SubmitterPolicy.UserIDs) > 0 {
		id = Assigned
		if r.KYCRequired {
			id = AssignedKYC
		}
	} else if r.ApproveSubmitters {
		id = ApplicationRequired
	}
	w, _ := Get(id)
	return &w
}

// Progress returns the inferred workflow with step results filled in from
// one application's status. A nil application yields all-pending steps.
func Progress(r *domain.Reward, app *domain.Application) *Workflow {
	w := Infer(r)
	if w == nil || app == nil {
		return w
	}
	for i := range w.Evaluations {
		w.Evaluations[i].Result = stepResult(w.Evaluations[i].Type, app.Status)
	}
	return w
}

func stepResult(stepType, status string) *string {
	pass := ResultPass
	fail := ResultFail
	switch stepType {
	case StepApply:
		// An application record existing means the apply step happened.
		return &pass
	case StepApplicationReview:
		switch status {
		case domain.ApplicationStatusApplied:
			return nil
		case domain.ApplicationStatusRejected:
			return &fail
		default:
			return &pass
		}
	case StepSubmit:
		switch status {
		case domain.ApplicationStatusApplied, domain.ApplicationStatusInProgress,
			domain.ApplicationStatusRejected, domain.ApplicationStatusCancelled:
			return nil
		default:
			return &pass
		}
	case StepReview:
		switch status {
		case domain.ApplicationStatusComplete, domain.ApplicationStatusProcessing, domain.ApplicationStatusPaid:
			return &pass
		case domain.ApplicationStatusSubmissionRejected:
			return &fail
		default:
			return nil
		}
	case StepCredential:
		switch status {
		case domain.ApplicationStatusProcessing, domain.ApplicationStatusPaid:
			return &pass
		default:
			return nil
		}
	case StepPayment:
		if status == domain.ApplicationStatusPaid {
			return &pass
		}
		return nil
	}
	return nil
}
