package models

const (
	StatusBooked     = "booked"
	StatusConfirmed  = "confirmed"
	StatusCheckedIn  = "checked_in"
	StatusCheckedOut = "checked_out"
	StatusCancelled  = "cancelled"
)

const (
	ListingActive   = "active"
	ListingDelisted = "delisted"
	ListingSold     = "sold"
)

// Capabilities checked on every privileged entry point.
const (
	CapabilityAdmin       = "admin"
	CapabilityController  = "controller"
	CapabilityMarketplace = "marketplace"
)

// Registry identifiers. Standalone stays live in RegistryStays; each
// provisioned event gets its own registry id; completed stays move to
// RegistryPostStay.
const (
	RegistryStays    = "stays"
	RegistryPostStay = "poststay"
)

const (
	// MaxBatch ограничение размера пакетных операций
	MaxBatch = 100

	// BpsDenominator базис для долей роялти (10000 = 100%)
	BpsDenominator = 10000

	// DefaultCacheTTL время жизни кэша чтения в секундах
	DefaultCacheTTL = 5 * 60

	// JournalQueueSize размер очереди журнального воркера
	JournalQueueSize = 1000
)

// Fixed royalty roles.
const (
	RoyaltyRolePlatform   = "platform"
	RoyaltyRoleHotel      = "hotel"
	RoyaltyRoleFirstOwner = "first_owner"
)
