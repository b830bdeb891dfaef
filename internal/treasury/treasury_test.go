package treasury

import (
	"context"
	"path/filepath"
	"testing"

	"staytoken/internal/database"
	"staytoken/internal/events"
	"staytoken/internal/ledger"
	"staytoken/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	treasuryAddr   = models.Address("0xTreasury")
	controllerAddr = models.Address("0xController")
	adminAddr      = models.Address("0xAdmin")
)

func setupTreasury(t *testing.T) (*Treasury, *ledger.TokenLedger, *events.EventBus) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.GrantRole(ctx, models.CapabilityController, controllerAddr))
	require.NoError(t, db.GrantRole(ctx, models.CapabilityAdmin, adminAddr))

	l := ledger.NewTokenLedger()
	bus := events.NewEventBus()
	return New(treasuryAddr, l, db, bus, &logger), l, bus
}

func TestPull(t *testing.T) {
	tr, l, _ := setupTreasury(t)
	ctx := context.Background()

	l.Mint("0xAlice", 1000)
	require.NoError(t, l.Approve(ctx, "0xAlice", tr.Address(), 500))

	require.NoError(t, tr.Pull(ctx, controllerAddr, "0xAlice", 400))

	bal, err := tr.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(400), bal)

	// Без одобрения остатка не хватает
	err = tr.Pull(ctx, controllerAddr, "0xAlice", 200)
	assert.ErrorIs(t, err, models.ErrInsufficientAllowance)
}

func TestPull_RequiresController(t *testing.T) {
	tr, l, _ := setupTreasury(t)
	ctx := context.Background()

	l.Mint("0xAlice", 1000)
	require.NoError(t, l.Approve(ctx, "0xAlice", tr.Address(), 500))

	err := tr.Pull(ctx, adminAddr, "0xAlice", 100)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestPayOut(t *testing.T) {
	tr, l, bus := setupTreasury(t)
	ctx := context.Background()

	var published int
	bus.Subscribe(events.EventTreasuryPayout, func(event *events.Event) error {
		published++
		return nil
	})

	l.Mint(tr.Address(), 1000)
	require.NoError(t, tr.PayOut(ctx, controllerAddr, 300, "0xGuest"))

	guestBal, _ := l.BalanceOf(ctx, "0xguest")
	assert.Equal(t, int64(300), guestBal)
	assert.Equal(t, 1, published)

	assert.ErrorIs(t, tr.PayOut(ctx, controllerAddr, 0, "0xGuest"), models.ErrSettlementOverflow)
	assert.ErrorIs(t, tr.PayOut(ctx, controllerAddr, 10, models.ZeroAddress), models.ErrInvalidAddress)
	assert.ErrorIs(t, tr.PayOut(ctx, adminAddr, 10, "0xGuest"), models.ErrUnauthorized)
}

func TestPayOut_BlockedWhilePaused(t *testing.T) {
	tr, l, _ := setupTreasury(t)
	ctx := context.Background()

	l.Mint(tr.Address(), 1000)
	require.NoError(t, tr.Pause(ctx, adminAddr))
	assert.True(t, tr.Paused())

	assert.ErrorIs(t, tr.PayOut(ctx, controllerAddr, 100, "0xGuest"), models.ErrPaused)
	assert.ErrorIs(t, tr.Withdraw(ctx, adminAddr, 100, "0xGuest"), models.ErrPaused)

	require.NoError(t, tr.Unpause(ctx, adminAddr))
	require.NoError(t, tr.PayOut(ctx, controllerAddr, 100, "0xGuest"))
}

func TestPause_RequiresAdmin(t *testing.T) {
	tr, _, _ := setupTreasury(t)
	assert.ErrorIs(t, tr.Pause(context.Background(), controllerAddr), models.ErrUnauthorized)
}

func TestWithdraw(t *testing.T) {
	tr, l, bus := setupTreasury(t)
	ctx := context.Background()

	var published int
	bus.Subscribe(events.EventTreasuryWithdrawal, func(event *events.Event) error {
		published++
		return nil
	})

	l.Mint(tr.Address(), 1000)
	require.NoError(t, tr.Withdraw(ctx, adminAddr, 600, "0xReserve"))

	bal, _ := tr.Balance(ctx)
	assert.Equal(t, int64(400), bal)
	assert.Equal(t, 1, published)

	assert.ErrorIs(t, tr.Withdraw(ctx, controllerAddr, 100, "0xReserve"), models.ErrUnauthorized)
}

func TestWithdrawOther(t *testing.T) {
	tr, _, _ := setupTreasury(t)
	ctx := context.Background()

	other := ledger.NewTokenLedger()
	other.Mint(tr.Address(), 500)

	require.NoError(t, tr.WithdrawOther(ctx, adminAddr, 500, "0xReserve", "0xOtherToken", other))
	bal, _ := other.BalanceOf(ctx, "0xReserve")
	assert.Equal(t, int64(500), bal)

	err := tr.WithdrawOther(ctx, adminAddr, 1, "0xReserve", models.ZeroAddress, other)
	assert.ErrorIs(t, err, models.ErrInvalidAddress)
}

func TestSetLedger(t *testing.T) {
	tr, _, _ := setupTreasury(t)
	ctx := context.Background()

	next := ledger.NewTokenLedger()
	next.Mint(tr.Address(), 777)
	tr.SetLedger(next)

	bal, err := tr.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(777), bal)
}
