package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Emitted record types, one per state change.
const (
	EventBookingCreated     = "booking_created"
	EventUnitMinted         = "unit_minted"
	EventCheckedIn          = "checked_in"
	EventCheckedOut         = "checked_out"
	EventCancelled          = "cancelled"
	EventEmergencyCancelled = "emergency_cancelled"
	EventBookingRefunded    = "booking_refunded"
	EventEventCreated       = "event_created"

	EventTreasurySet   = "treasury_set"
	EventWalletSet     = "wallet_set"
	EventAdminSet      = "admin_set"
	EventCommissionSet = "commission_set"
	EventNameSet       = "name_set"
	EventPaused        = "paused"
	EventUnpaused      = "unpaused"
	EventRoleGranted   = "role_granted"
	EventRoleRevoked   = "role_revoked"

	EventListingCreated  = "listing_created"
	EventListingDelisted = "listing_delisted"
	EventListingRelisted = "listing_relisted"
	EventListingDeleted  = "listing_deleted"
	EventListingSold     = "listing_sold"

	EventOwnershipTransferred = "ownership_transferred"
	EventRoyaltyUpdated       = "royalty_updated"
	EventTreasuryPayout       = "treasury_payout"
	EventTreasuryWithdrawal   = "treasury_withdrawal"
)

// BookingPayload is the booking snapshot carried by lifecycle records.
type BookingPayload struct {
	BookingID   int64     `json:"booking_id"`
	EventID     int64     `json:"event_id,omitempty"`
	Owner       string    `json:"owner"`
	TotalAmount int64     `json:"total_amount"`
	Status      string    `json:"status"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CheckIn     time.Time `json:"check_in"`
	CheckOut    time.Time `json:"check_out"`
}

// SettlementPayload carries the figures of a cancellation or refund.
type SettlementPayload struct {
	BookingID int64  `json:"booking_id"`
	Owner     string `json:"owner"`
	Penalty   int64  `json:"penalty,omitempty"`
	Refund    int64  `json:"refund"`
	Charges   int64  `json:"charges"`
}

// ChangePayload carries old/new values for configuration records.
type ChangePayload struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	Actor    string `json:"actor,omitempty"`
}

// TransferPayload describes an ownership movement.
type TransferPayload struct {
	RegistryID string  `json:"registry_id"`
	UnitIDs    []int64 `json:"unit_ids"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Operator   string  `json:"operator,omitempty"`
}

// ListingPayload describes a marketplace listing change.
type ListingPayload struct {
	UnitID int64  `json:"unit_id"`
	Seller string `json:"seller"`
	Buyer  string `json:"buyer,omitempty"`
	Price  int64  `json:"price"`
	Status string `json:"status"`
}

// Event represents a lightweight protocol record.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for emitted records.
type EventBus struct {
	subscribers map[string][]EventHandler
	catchAll    []EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type. The journal worker
// uses this to persist each emitted record.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catchAll = append(b.catchAll, handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.catchAll...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
