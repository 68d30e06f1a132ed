package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeGST_IntraState(t *testing.T) {
	g := ComputeGST(dec("118"), dec("18"), "Gujarat", "Gujarat")

	assert.True(t, g.AmountWithoutGST.Equal(dec("100")))
	assert.True(t, g.TotalGST.Equal(dec("18")))
	assert.True(t, g.CGST.Equal(dec("9")))
	assert.True(t, g.SGST.Equal(dec("9")))
	assert.True(t, g.IGST.IsZero())
	assert.True(t, g.IntraState())
}

func TestComputeGST_InterState(t *testing.T) {
	g := ComputeGST(dec("100"), dec("18"), "Maharashtra", "Gujarat")

	// 100 * 100 / 118 = 84.745... -> 84.75
	assert.True(t, g.AmountWithoutGST.Equal(dec("84.75")))
	assert.True(t, g.TotalGST.Equal(dec("15.25")))
	assert.True(t, g.IGST.Equal(dec("15.25")))
	assert.True(t, g.CGST.IsZero())
	assert.True(t, g.SGST.IsZero())
	assert.False(t, g.IntraState())
}

func TestComputeGST_StateMatchIgnoresCase(t *testing.T) {
	g := ComputeGST(dec("118"), dec("18"), " gujarat ", "Gujarat")
	assert.True(t, g.IGST.IsZero())
}

func TestComputeGST_Properties(t *testing.T) {
	rates := []string{"0", "5", "12", "18", "28", "100"}
	amounts := []string{"0.01", "1", "99.99", "100", "4999", "3999.50", "500000"}

	for _, r := range rates {
		for _, a := range amounts {
			paid, rate := dec(a), dec(r)
			for _, state := range []string{"Gujarat", "Kerala"} {
				g := ComputeGST(paid, rate, state, "Gujarat")

				expected := paid.Mul(dec("100")).Div(dec("100").Add(rate)).Round(2)
				assert.True(t, g.AmountWithoutGST.Equal(expected), "awg for %s at %s%%", a, r)
				assert.True(t, g.AmountWithoutGST.Add(g.TotalGST).Equal(paid), "sum for %s at %s%%", a, r)
				assert.True(t, g.CGST.Add(g.SGST).Add(g.IGST).Equal(g.TotalGST), "components for %s at %s%%", a, r)

				if state == "Gujarat" {
					assert.True(t, g.CGST.Equal(g.SGST))
					assert.True(t, g.IGST.IsZero())
				} else {
					assert.True(t, g.CGST.IsZero())
					assert.True(t, g.SGST.IsZero())
					assert.True(t, g.IGST.Equal(g.TotalGST))
				}
			}
		}
	}
}

func TestScopes(t *testing.T) {
	at := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "COS-202610", InvoiceScope("COS", at))
	assert.Equal(t, "CNC-202610", CancelBillScope("CNC", at))
	assert.Equal(t, "MGPS/2026/10/", CertificateScope("MGPS", at))
	assert.Equal(t, "COS-202611", InvoiceScope("COS", at.AddDate(0, 1, 0)))
}

func TestReceiptAndSkipOrderID(t *testing.T) {
	at := time.UnixMilli(1760702400123)

	assert.Equal(t, "recpt_234567_42_1760702400123", Receipt(1234567, 42, at))
	assert.Equal(t, "ORD-7-99-1760702400123", SkipOrderID(7, 99, at))
}
