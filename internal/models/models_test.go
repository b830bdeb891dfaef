package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddress_IsZero(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want bool
	}{
		{"empty", "", true},
		{"whitespace", "  ", true},
		{"short null", "0x0", true},
		{"long null", "0x0000000000000000000000000000000000000000", true},
		{"real address", "0xAbC123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.IsZero())
		})
	}
}

func TestAddress_NormalizeAndEqual(t *testing.T) {
	assert.Equal(t, Address("0xabc123"), Address(" 0xAbC123 ").Normalize())
	assert.True(t, Address("0xABC").Equal("0xabc"))
	assert.False(t, Address("0xABC").Equal("0xabd"))
}

func TestBooking_TradeDeadline(t *testing.T) {
	checkIn := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	b := &Booking{CheckIn: checkIn, TradeTimeLimitHours: 24}
	assert.Equal(t, checkIn.Add(-24*time.Hour), b.TradeDeadline())

	b.TradeTimeLimitHours = 0
	assert.Equal(t, checkIn, b.TradeDeadline())
}

func TestBooking_RegistryID(t *testing.T) {
	standalone := &Booking{ID: 1}
	assert.Equal(t, RegistryStays, standalone.RegistryID())

	ticketed := &Booking{ID: 2, EventID: 7}
	assert.Equal(t, "event:7", ticketed.RegistryID())
}

func TestRoyaltySchedule_Totals(t *testing.T) {
	s := &RoyaltySchedule{
		Platform:   RoyaltyEntry{Recipient: "0xp", FractionBps: 250},
		Hotel:      RoyaltyEntry{Recipient: "0xh", FractionBps: 500},
		FirstOwner: RoyaltyEntry{FractionBps: 100},
		Others: []RoyaltyEntry{
			{Recipient: "0xa", FractionBps: 30},
			{Recipient: "0xb", FractionBps: 20},
		},
	}
	assert.Equal(t, int64(900), s.TotalBps())
	assert.Equal(t, int64(50), s.OthersBps())
}
