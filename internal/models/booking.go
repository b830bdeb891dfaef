package models

import "time"

// Booking is the persistent record of one reservation. Status moves strictly
// forward (booked -> confirmed -> checked_in -> checked_out); cancellation is
// terminal and reachable only from booked or checked_in.
type Booking struct {
	ID                  int64     `json:"id"`
	EventID             int64     `json:"event_id,omitempty"` // 0 for standalone stays
	Owner               Address   `json:"owner"`
	TotalAmount         int64     `json:"total_amount"`
	BaseRate            int64     `json:"base_rate"`
	MinimumDeposit      int64     `json:"minimum_deposit"`
	RoomCount           int64     `json:"room_count"`
	ExtraCount          int64     `json:"extra_count"`
	CheckIn             time.Time `json:"check_in"`
	CheckOut            time.Time `json:"check_out"`
	TradeTimeLimitHours int64     `json:"trade_time_limit_hours"`
	Tradeable           bool      `json:"tradeable"`
	Status              string    `json:"status"`
	ReferenceID         string    `json:"reference_id"`
	MetadataURI         string    `json:"metadata_uri"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TradeDeadline is the last instant at which the unit may still be traded by
// its holder: checkIn minus the trade-time window.
func (b *Booking) TradeDeadline() time.Time {
	return b.CheckIn.Add(-time.Duration(b.TradeTimeLimitHours) * time.Hour)
}

// RegistryID names the active ownership registry this booking's unit lives in.
func (b *Booking) RegistryID() string {
	if b.EventID != 0 {
		return EventRegistryID(b.EventID)
	}
	return RegistryStays
}

// BookingRequest is one element of a booking batch.
type BookingRequest struct {
	EventID        int64 `json:"event_id,omitempty"`
	Total          int64 `json:"total"`
	BaseRate       int64 `json:"base_rate"`
	MinimumDeposit int64 `json:"minimum_deposit"`
	RoomCount      int64 `json:"room_count"`
	ExtraCount     int64 `json:"extra_count"`
}

// CancellationTerms carries the per-booking figures an owner signs off on.
type CancellationTerms struct {
	Penalty int64 `json:"penalty"`
	Refund  int64 `json:"refund"`
	Charges int64 `json:"charges"`
}
