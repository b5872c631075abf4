// Package budget holds the token counter shared by one context build.
package budget

import "fmt"

// Budget is a monotonically decreasing token allowance. The caller owns it
// and decides which phases share it.
type Budget struct {
	max       int
	remaining int
}

// New returns a Budget with max tokens available. Negative values are
// clamped to zero.
func New(max int) *Budget {
	if max < 0 {
		max = 0
	}
	return &Budget{max: max, remaining: max}
}

// Max returns the initial allowance.
func (b *Budget) Max() int { return b.max }

// Remaining returns the tokens still available.
func (b *Budget) Remaining() int { return b.remaining }

// Used returns the tokens consumed so far.
func (b *Budget) Used() int { return b.max - b.remaining }

// Fits reports whether n tokens can be spent without going negative.
// Negative costs never fit.
func (b *Budget) Fits(n int) bool { return n >= 0 && n <= b.remaining }

// Exhausted reports whether nothing is left.
func (b *Budget) Exhausted() bool { return b.remaining <= 0 }

// Spend subtracts n tokens. Spending more than remains is a programming
// error and returns an error without changing the budget.
func (b *Budget) Spend(n int) error {
	if n < 0 {
		return fmt.Errorf("budget: negative spend %d", n)
	}
	if n > b.remaining {
		return fmt.Errorf("budget: spend %d exceeds remaining %d", n, b.remaining)
	}
	b.remaining -= n
	return nil
}

// Exhaust drops the remaining allowance to zero and returns how much was
// left. Truncation consumes everything.
func (b *Budget) Exhaust() int {
	left := b.remaining
	b.remaining = 0
	return left
}

func (b *Budget) String() string {
	return fmt.Sprintf("%d/%d tokens remaining", b.remaining, b.max)
}
