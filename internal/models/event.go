package models

import (
	"fmt"
	"time"
)

// Event is the ticketed multi-unit variant: a batch of units sharing dates,
// capacity and a dedicated ownership registry.
type Event struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	ReferenceID         string    `json:"reference_id"`
	Type                string    `json:"type"`
	Start               time.Time `json:"start"`
	End                 time.Time `json:"end"`
	TicketCapacity      int64     `json:"ticket_capacity"`
	TicketsIssued       int64     `json:"tickets_issued"`
	TradeTimeLimitHours int64     `json:"trade_time_limit_hours"`
	RegistryID          string    `json:"registry_id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// EventRegistryID names the ownership registry provisioned for an event.
func EventRegistryID(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}
