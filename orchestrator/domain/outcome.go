package domain

// StepID identifies one fanned-out step of the ticket purchase saga
type StepID string

const (
	StepSeatBooking    StepID = "seat_booking"
	StepPayment        StepID = "payment"
	StepTicketDocument StepID = "ticket_document"
)

// TicketPurchaseSteps returns the step set dispatched for every ticket
// purchase. Declared per saga type, not per instance: the completion check
// relies on the slot count matching the dispatched-step count exactly.
func TicketPurchaseSteps() []StepID {
	return []StepID{StepSeatBooking, StepPayment, StepTicketDocument}
}

func (s StepID) String() string {
	return string(s)
}

// StepOutcome represents the status of a single fanned-out step
type StepOutcome string

const (
	StepOutcomePending   StepOutcome = "pending"
	StepOutcomeSucceeded StepOutcome = "succeeded"
	StepOutcomeFailed    StepOutcome = "failed"
)

// IsTerminal checks whether the outcome can no longer change
func (o StepOutcome) IsTerminal() bool {
	return o == StepOutcomeSucceeded || o == StepOutcomeFailed
}

// Verdict is the combined result of all step outcomes
type Verdict string

const (
	VerdictStillPending Verdict = "still_pending"
	VerdictAllSucceeded Verdict = "all_succeeded"
	VerdictSomeFailed   Verdict = "some_failed"
)

// CombineOutcomes folds the per-step outcomes into an overall verdict. Pure
// and order-independent: it may be evaluated after every update, including
// duplicate or late ones, and yields the same verdict for any arrival order.
func CombineOutcomes(outcomes map[StepID]StepOutcome) Verdict {
	failed := false
	for _, outcome := range outcomes {
		switch outcome {
		case StepOutcomePending:
			return VerdictStillPending
		case StepOutcomeFailed:
			failed = true
		}
	}

	if failed {
		return VerdictSomeFailed
	}
	return VerdictAllSucceeded
}
