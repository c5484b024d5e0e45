package wizard

// Flow names the wizard definitions the pages use.
type Flow string

const (
	FlowBooking   Flow = "booking"
	FlowChat      Flow = "chat"
	FlowCorporate Flow = "corporate"
)

// Step names of the corporate inquiry flow.
const (
	StepIntroduction = "introduction"
	StepDetails      = "details"
	StepContact      = "contact"
	StepReview       = "review"
)

// Step names of the booking and chat flows. Booking and chat pages number
// their steps; the names only label them.
const (
	StepPackage  = "package"
	StepSchedule = "schedule"
	StepPlatform = "platform"
	StepDuration = "duration"
	StepConfirm  = "confirm"
)

// Steps returns the ordered step names of a flow.
func Steps(f Flow) []string {
	switch f {
	case FlowBooking:
		return []string{StepPackage, StepSchedule, StepConfirm}
	case FlowChat:
		return []string{StepPlatform, StepDuration, StepConfirm}
	case FlowCorporate:
		return []string{StepIntroduction, StepDetails, StepContact, StepReview}
	default:
		return nil
	}
}

// NewFlow builds a fresh machine for f.
func NewFlow(f Flow) (*Machine, error) {
	return New(Steps(f)...)
}
