package models

// RoyaltyEntry is one (recipient, fraction) share of trade proceeds.
type RoyaltyEntry struct {
	Recipient   Address `json:"recipient"`
	FractionBps int64   `json:"fraction_bps"`
}

// RoyaltySchedule holds the fixed-role shares plus the ordered "other" list.
// The combined total never exceeds BpsDenominator.
type RoyaltySchedule struct {
	Platform   RoyaltyEntry   `json:"platform"`
	Hotel      RoyaltyEntry   `json:"hotel"`
	FirstOwner RoyaltyEntry   `json:"first_owner"`
	Others     []RoyaltyEntry `json:"others,omitempty"`
}

// TotalBps returns the combined fraction of all configured entries.
func (s *RoyaltySchedule) TotalBps() int64 {
	total := s.Platform.FractionBps + s.Hotel.FractionBps + s.FirstOwner.FractionBps
	for _, e := range s.Others {
		total += e.FractionBps
	}
	return total
}

// OthersBps returns the subtotal of the "other" list alone.
func (s *RoyaltySchedule) OthersBps() int64 {
	var total int64
	for _, e := range s.Others {
		total += e.FractionBps
	}
	return total
}

// Payout is one leg of a computed split.
type Payout struct {
	Recipient Address `json:"recipient"`
	Amount    int64   `json:"amount"`
}

// RoyaltyInfo is the query view for one unit: the schedule in force plus the
// first owner snapshotted at mint time.
type RoyaltyInfo struct {
	UnitID     int64           `json:"unit_id"`
	FirstOwner Address         `json:"first_owner"`
	Schedule   RoyaltySchedule `json:"schedule"`
}
