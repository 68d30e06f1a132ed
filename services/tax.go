package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// GSTBreakdown splits a GST-inclusive amount into its components
type GSTBreakdown struct {
	Paid             decimal.Decimal
	AmountWithoutGST decimal.Decimal
	TotalGST         decimal.Decimal
	CGST             decimal.Decimal
	SGST             decimal.Decimal
	IGST             decimal.Decimal
}

// IntraState reports whether the tax was split into CGST and SGST
func (g GSTBreakdown) IntraState() bool {
	return g.IGST.IsZero() && !g.TotalGST.IsZero()
}

// ComputeGST derives the tax components of paid, which already includes
// gstPercent. Buyers in homeState pay CGST and SGST in equal halves,
// everyone else pays IGST.
func ComputeGST(paid, gstPercent decimal.Decimal, customerState, homeState string) GSTBreakdown {
	awg := paid.Mul(hundred).Div(hundred.Add(gstPercent)).Round(2)
	total := paid.Sub(awg)

	g := GSTBreakdown{
		Paid:             paid,
		AmountWithoutGST: awg,
		TotalGST:         total,
		CGST:             decimal.Zero,
		SGST:             decimal.Zero,
		IGST:             decimal.Zero,
	}
	if SameState(customerState, homeState) {
		half := total.Div(decimal.NewFromInt(2))
		g.CGST = half
		g.SGST = half
	} else {
		g.IGST = total
	}
	return g
}

// SameState compares state names ignoring case and surrounding spaces
func SameState(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
