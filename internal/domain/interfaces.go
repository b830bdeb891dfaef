package domain

import (
	"context"
	"time"

	"staytoken/internal/models"
)

// Store is the persistence boundary for all protocol state. Composite
// lifecycle transitions (mint, checkout, cancel, sale) are single methods so
// the store can run them in one transaction; a precondition that fails inside
// the transaction rolls the whole call back.
type Store interface {
	// Bookings.
	CreateBookings(ctx context.Context, bookings []*models.Booking) error
	DeleteBookings(ctx context.Context, ids []int64) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, status string, from, to time.Time) ([]*models.Booking, error)
	SetBookingURI(ctx context.Context, id int64, uri string) error

	// Lifecycle transitions.
	MintUnits(ctx context.Context, mints []models.UnitMint) error
	CheckInBookings(ctx context.Context, ids []int64) error
	CheckOutBookings(ctx context.Context, ids []int64) error
	CancelBookings(ctx context.Context, ids []int64) error

	// Units.
	GetUnit(ctx context.Context, registryID string, unitID int64) (*models.Unit, error)
	FindActiveUnit(ctx context.Context, unitID int64) (*models.Unit, error)
	BalanceOf(ctx context.Context, registryID string, owner models.Address, unitID int64) (int64, error)
	TransferUnits(ctx context.Context, registryID string, from, to models.Address, unitIDs []int64) error
	SetUnitURI(ctx context.Context, registryID string, unitID int64, uri string) error

	// Listings.
	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, unitID int64) (*models.Listing, error)
	UpdateListing(ctx context.Context, unitID int64, price int64, status string) error
	DeleteListing(ctx context.Context, unitID int64) error
	CompleteSale(ctx context.Context, registryID string, unitID int64, seller, buyer models.Address) error

	// Royalty schedule and per-unit first-owner snapshots.
	GetRoyaltySchedule(ctx context.Context) (*models.RoyaltySchedule, error)
	SetFixedRoyalty(ctx context.Context, role string, entry models.RoyaltyEntry) error
	ReplaceOtherRoyalties(ctx context.Context, entries []models.RoyaltyEntry) error
	FirstOwner(ctx context.Context, unitID int64) (models.Address, error)

	// Capability membership.
	GrantRole(ctx context.Context, capability string, addr models.Address) error
	RevokeRole(ctx context.Context, capability string, addr models.Address) error
	HasRole(ctx context.Context, capability string, addr models.Address) (bool, error)

	// Events (ticketed variant).
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)

	// Controller configuration record.
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)

	// Audit journal of emitted records.
	AppendJournal(ctx context.Context, rec *models.JournalRecord) error
	ListJournal(ctx context.Context, limit int) ([]*models.JournalRecord, error)
}

// ValueLedger is the external fungible-value collaborator holding balances of
// the settlement currency. The core never mutates it except through these
// transfer operations.
type ValueLedger interface {
	BalanceOf(ctx context.Context, owner models.Address) (int64, error)
	Transfer(ctx context.Context, from, to models.Address, amount int64) error
	Approve(ctx context.Context, owner, spender models.Address, amount int64) error
	Allowance(ctx context.Context, owner, spender models.Address) (int64, error)
	TransferFrom(ctx context.Context, spender, from, to models.Address, amount int64) error
}

// EventPublisher publishes emitted protocol records.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SignatureVerifier recovers the signer of a structured cancellation message.
type SignatureVerifier interface {
	CancellationMessage(terms []models.CancellationTerms) string
	RecoverSigner(message string, sig []byte) (models.Address, error)
}

// CacheRepository is the read cache in front of the store for API queries.
type CacheRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	SetBooking(ctx context.Context, booking *models.Booking) error
	InvalidateBooking(ctx context.Context, id int64) error
	GetListing(ctx context.Context, unitID int64) (*models.Listing, error)
	SetListing(ctx context.Context, listing *models.Listing) error
	InvalidateListing(ctx context.Context, unitID int64) error
}

// JournalWorker receives emitted records for asynchronous persistence.
type JournalWorker interface {
	Enqueue(ctx context.Context, rec *models.JournalRecord) error
}
