package ledger

import (
	"context"
	"fmt"
	"sync"

	"staytoken/internal/models"
)

// TokenLedger is the reference in-memory implementation of the settlement
// currency: balances, allowances and transfer/approve semantics. Production
// deployments substitute an adapter to the real value ledger; tests and local
// runs use this one.
type TokenLedger struct {
	mu         sync.RWMutex
	balances   map[models.Address]int64
	allowances map[models.Address]map[models.Address]int64
}

func NewTokenLedger() *TokenLedger {
	return &TokenLedger{
		balances:   make(map[models.Address]int64),
		allowances: make(map[models.Address]map[models.Address]int64),
	}
}

// Mint credits an account. Seeding only; the protocol core never calls it.
func (l *TokenLedger) Mint(addr models.Address, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr.Normalize()] += amount
}

func (l *TokenLedger) BalanceOf(ctx context.Context, owner models.Address) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner.Normalize()], nil
}

func (l *TokenLedger) Transfer(ctx context.Context, from, to models.Address, amount int64) error {
	if to.IsZero() {
		return fmt.Errorf("transfer to null address: %w", models.ErrInvalidAddress)
	}
	if amount < 0 {
		return fmt.Errorf("negative amount: %w", models.ErrSettlementOverflow)
	}

	from = from.Normalize()
	to = to.Normalize()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return fmt.Errorf("%s has %d, needs %d: %w", from, l.balances[from], amount, models.ErrInsufficientBalance)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *TokenLedger) Approve(ctx context.Context, owner, spender models.Address, amount int64) error {
	if spender.IsZero() {
		return fmt.Errorf("approve null spender: %w", models.ErrInvalidAddress)
	}

	owner = owner.Normalize()
	spender = spender.Normalize()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[models.Address]int64)
	}
	l.allowances[owner][spender] = amount
	return nil
}

func (l *TokenLedger) Allowance(ctx context.Context, owner, spender models.Address) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[owner.Normalize()][spender.Normalize()], nil
}

// TransferFrom spends an allowance granted by `from` to `spender`.
func (l *TokenLedger) TransferFrom(ctx context.Context, spender, from, to models.Address, amount int64) error {
	if to.IsZero() {
		return fmt.Errorf("transfer to null address: %w", models.ErrInvalidAddress)
	}
	if amount < 0 {
		return fmt.Errorf("negative amount: %w", models.ErrSettlementOverflow)
	}

	spender = spender.Normalize()
	from = from.Normalize()
	to = to.Normalize()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[from][spender] < amount {
		return fmt.Errorf("%s allowed %d to %s, needs %d: %w",
			from, l.allowances[from][spender], spender, amount, models.ErrInsufficientAllowance)
	}
	if l.balances[from] < amount {
		return fmt.Errorf("%s has %d, needs %d: %w", from, l.balances[from], amount, models.ErrInsufficientBalance)
	}
	l.allowances[from][spender] -= amount
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
