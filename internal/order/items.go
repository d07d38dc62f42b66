package order

import (
	"fmt"

	"github.com/optik-pos/api/internal/money"
)

// Total is frame + lens + coating + service + each contact-lens line
// multiplied by its quantity.
func (p PricedItems) Total() money.Amount {
	total := money.Sum(p.Frame, p.Lens, p.Coating, p.Service)
	for _, cl := range p.ContactLenses {
		total = total.Add(cl.UnitPrice.MulQty(cl.Quantity))
	}
	return total
}

// IsEmpty reports whether nothing on the order carries a price.
func (p PricedItems) IsEmpty() bool {
	return !p.Total().IsPositive()
}

func (p PricedItems) validate() error {
	for name, a := range map[string]money.Amount{
		"frame":   p.Frame,
		"lens":    p.Lens,
		"coating": p.Coating,
		"service": p.Service,
	} {
		if a.IsNegative() {
			return fmt.Errorf("%w: %s price %s is negative", ErrInvalidAmount, name, a)
		}
	}
	for i, cl := range p.ContactLenses {
		if cl.Quantity <= 0 {
			return fmt.Errorf("%w: contact_lenses[%d]: quantity must be > 0", ErrInvalidAmount, i)
		}
		if cl.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: contact_lenses[%d]: unit price %s is negative", ErrInvalidAmount, i, cl.UnitPrice)
		}
	}
	// Prices are non-negative here, so the total bounds every line.
	if total := p.Total(); total.ExceedsMax() {
		return fmt.Errorf("%w: line item total %s exceeds %s", ErrInvalidAmount, total, money.Max)
	}
	return nil
}

func (p PricedItems) clone() PricedItems {
	c := p
	c.ContactLenses = append([]ContactLensItem(nil), p.ContactLenses...)
	return c
}

func (p PricedItems) equal(q PricedItems) bool {
	if !p.Frame.Equal(q.Frame) || !p.Lens.Equal(q.Lens) ||
		!p.Coating.Equal(q.Coating) || !p.Service.Equal(q.Service) ||
		len(p.ContactLenses) != len(q.ContactLenses) {
		return false
	}
	for i := range p.ContactLenses {
		a, b := p.ContactLenses[i], q.ContactLenses[i]
		if a.Description != b.Description || a.Quantity != b.Quantity || !a.UnitPrice.Equal(b.UnitPrice) {
			return false
		}
	}
	return true
}
