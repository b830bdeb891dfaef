package models

import "time"

// Unit is one ownership record inside a registry. A unit exists in an active
// registry iff its booking is confirmed or checked in, and in the post-stay
// registry iff the stay completed.
type Unit struct {
	RegistryID  string    `json:"registry_id"`
	UnitID      int64     `json:"unit_id"`
	Owner       Address   `json:"owner"`
	MetadataURI string    `json:"metadata_uri"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UnitMint describes one registry entry to create during a mint transition.
type UnitMint struct {
	BookingID  int64
	RegistryID string
	EventID    int64
	Owner      Address
	URI        string
}

// Listing is a resale offer for a transferable unit.
type Listing struct {
	UnitID    int64     `json:"unit_id"`
	Seller    Address   `json:"seller"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
