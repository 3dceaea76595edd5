package billing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals is the monetary snapshot of a bill. Every amount is rounded to two
// decimal places and FinalAmount always equals TotalWithTax minus Discount.
type Totals struct {
	TotalAmount   decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalWithTax  decimal.Decimal
	Discount      decimal.Decimal
	FinalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	Dues          decimal.Decimal
	PaymentStatus string
}

// Inputs drive a full computation.
type Inputs struct {
	Prices        []decimal.Decimal
	TaxEnabled    bool
	TaxPercentage decimal.Decimal
	// Target is the amount the patient is asked to pay. Nil means the
	// taxed total.
	Target             *decimal.Decimal
	PaymentModeEnabled bool
	Payments           []decimal.Decimal
	DirectPaid         *decimal.Decimal
}

// Compute runs the complete billing calculation.
func Compute(in Inputs) Totals {
	total := decimal.Zero
	for _, p := range in.Prices {
		total = total.Add(p)
	}
	total = total.Round(2)
	return Settle(total, Tax(total, in.TaxEnabled, in.TaxPercentage), in.Target,
		Paid(in.PaymentModeEnabled, in.Payments, in.DirectPaid))
}

// Tax returns total × percentage / 100, or zero when tax is disabled.
func Tax(total decimal.Decimal, enabled bool, percentage decimal.Decimal) decimal.Decimal {
	if !enabled {
		return decimal.Zero
	}
	return total.Mul(percentage).Div(hundred).Round(2)
}

// Paid sums payment entries when payment modes are enabled, otherwise it
// takes the directly entered amount.
func Paid(modeEnabled bool, payments []decimal.Decimal, direct *decimal.Decimal) decimal.Decimal {
	if !modeEnabled {
		if direct == nil {
			return decimal.Zero
		}
		return direct.Round(2)
	}
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p)
	}
	return sum.Round(2)
}

// Settle derives the payable, discount and payment state from a total and
// its tax.
func Settle(total, tax decimal.Decimal, target *decimal.Decimal, paid decimal.Decimal) Totals {
	t := Totals{
		TotalAmount:  total.Round(2),
		TaxAmount:    tax.Round(2),
		TotalWithTax: total.Add(tax).Round(2),
	}
	return Repay(Reprice(t, target), paid)
}

// Reprice recomputes FinalAmount and Discount from the stored TotalWithTax,
// then re-derives the payment state against the stored PaidAmount.
func Reprice(t Totals, target *decimal.Decimal) Totals {
	t.FinalAmount = t.TotalWithTax
	if target != nil {
		t.FinalAmount = target.Round(2)
	}
	t.Discount = t.TotalWithTax.Sub(t.FinalAmount)
	return Repay(t, t.PaidAmount)
}

// Repay sets PaidAmount and re-derives status and dues against the stored
// FinalAmount.
func Repay(t Totals, paid decimal.Decimal) Totals {
	t.PaidAmount = paid.Round(2)
	t.PaymentStatus = PaymentStatus(t.PaidAmount, t.FinalAmount)
	t.Dues = decimal.Max(t.FinalAmount.Sub(t.PaidAmount), decimal.Zero)
	return t
}

// PaymentStatus is Paid once paid covers final, PartiallyPaid for any
// positive amount below it, and Pending otherwise.
func PaymentStatus(paid, final decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(final):
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartiallyPaid
	default:
		return PaymentPending
	}
}
