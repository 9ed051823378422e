package domain

import (
	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/boxoffice/ticket-system/shared/models"
)

// CompensationBuilder constructs the compensating command for one step of a
// given instance.
type CompensationBuilder func(saga *TicketPurchase) *events.Event

// CompensationTable maps each compensable step to its command builder.
// Supplied per deployment; steps without an entry are not compensable.
type CompensationTable map[StepID]CompensationBuilder

// PlanCompensations returns the compensating commands for a finished saga:
// one command for each step that actually succeeded and has a registered
// compensation. Failed or pending steps are never compensated. The returned
// order is deterministic (sorted by step ID) but carries no semantics: the
// targets are independent services.
func PlanCompensations(saga *TicketPurchase, table CompensationTable) []*events.Event {
	commands := make([]*events.Event, 0, len(table))
	for _, step := range sortedSteps(saga.StepOutcomes) {
		if saga.StepOutcomes[step] != StepOutcomeSucceeded {
			continue
		}
		builder, ok := table[step]
		if !ok || builder == nil {
			continue
		}
		commands = append(commands, builder(saga))
	}
	return commands
}

// SeatReleaseData is the payload of the seat-booking compensation command
type SeatReleaseData struct {
	CorrelationID string `json:"correlation_id"`
	Row           int    `json:"row"`
	Seat          int    `json:"seat"`
}

// PaymentRefundData is the payload of the payment compensation command
type PaymentRefundData struct {
	CorrelationID string       `json:"correlation_id"`
	Amount        models.Money `json:"amount"`
}

// DefaultCompensationTable is the deployment default for the ticket purchase
// saga: release the seat, refund the payment. Document generation has no
// compensation; an unused ticket document is simply discarded.
func DefaultCompensationTable() CompensationTable {
	return CompensationTable{
		StepSeatBooking: func(saga *TicketPurchase) *events.Event {
			return events.NewEvent(saga.CorrelationID, events.SeatReleaseRequestedEvent, SeatReleaseData{
				CorrelationID: saga.CorrelationID.String(),
				Row:           saga.Row,
				Seat:          saga.Seat,
			}).WithCorrelationID(saga.CorrelationID)
		},
		StepPayment: func(saga *TicketPurchase) *events.Event {
			return events.NewEvent(saga.CorrelationID, events.PaymentRefundRequestedEvent, PaymentRefundData{
				CorrelationID: saga.CorrelationID.String(),
				Amount:        saga.Price,
			}).WithCorrelationID(saga.CorrelationID)
		},
	}
}
