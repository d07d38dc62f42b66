package order

import (
	"fmt"
	"strings"

	"github.com/optik-pos/api/internal/money"
)

// TotalPaid folds the ledger. It is the only source of paid-to-date.
func TotalPaid(entries []Payment) money.Amount {
	total := money.Zero
	for _, p := range entries {
		total = total.Add(p.Amount)
	}
	return total
}

// TotalRefunded folds the refund records.
func TotalRefunded(refunds []Refund) money.Amount {
	total := money.Zero
	for _, r := range refunds {
		total = total.Add(r.Amount)
	}
	return total
}

// MethodSet is the list of payment methods the shop accepts. A nil set
// accepts any non-empty method.
type MethodSet map[string]struct{}

// NewMethodSet normalizes methods to upper case.
func NewMethodSet(methods []string) MethodSet {
	set := make(MethodSet, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m != "" {
			set[m] = struct{}{}
		}
	}
	return set
}

// normalize trims and upper-cases method, then checks it against the set.
// The returned form is what gets stored.
func (s MethodSet) normalize(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		return "", fmt.Errorf("%w: method", ErrMissingField)
	}
	if s == nil {
		return m, nil
	}
	if _, ok := s[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
	return m, nil
}

// RecordPayments appends a batch of ledger entries as one payment event.
// Either every entry is recorded or none is. The invoice becomes PAID in
// the same step when the batch settles the balance exactly.
func (o *Order) RecordPayments(batch []Payment, methods MethodSet) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: payments", ErrMissingField)
	}
	if o.Invoice.IsArchived {
		return ErrAlreadyArchived
	}

	entries := make([]Payment, len(batch))
	sum := money.Zero
	for i, p := range batch {
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: payments[%d]: amount must be > 0", ErrInvalidAmount, i)
		}
		if p.Amount.ExceedsMax() {
			return fmt.Errorf("%w: payments[%d]: amount %s exceeds %s", ErrInvalidAmount, i, p.Amount, money.Max)
		}
		method, err := methods.normalize(p.Method)
		if err != nil {
			return fmt.Errorf("payments[%d]: %w", i, err)
		}
		p.InvoiceID = o.Invoice.ID
		p.Method = method
		entries[i] = p
		sum = sum.Add(p.Amount)
	}
	if sum.GreaterThan(o.Invoice.Remaining) {
		return fmt.Errorf("%w: paying %s, remaining %s", ErrOverpaymentRejected, sum, o.Invoice.Remaining)
	}

	o.Invoice.Payments = append(o.Invoice.Payments, entries...)
	o.recompute()
	return nil
}
