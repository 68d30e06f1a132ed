package services

import (
	"fmt"
	"strconv"
	"time"
)

// InvoiceScope is the sequence scope of invoices for the month of t, e.g. "COS-202610"
func InvoiceScope(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, t.Format("200601"))
}

// CancelBillScope is the sequence scope of cancellation bills, e.g. "CNC-202610"
func CancelBillScope(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, t.Format("200601"))
}

// CertificateScope is the sequence scope of certificates, e.g. "MGPS/2026/10/"
func CertificateScope(prefix string, t time.Time) string {
	return fmt.Sprintf("%s/%s/", prefix, t.Format("2006/01"))
}

// Receipt builds the gateway receipt "recpt_<user>_<course>_<unix ms>"
func Receipt(userID, courseID uint, t time.Time) string {
	return fmt.Sprintf("recpt_%s_%s_%d", lastN(userID, 6), lastN(courseID, 6), t.UnixMilli())
}

// SkipOrderID builds the id of an admin granted order "ORD-<user>-<course>-<unix ms>"
func SkipOrderID(userID, courseID uint, t time.Time) string {
	return fmt.Sprintf("ORD-%s-%s-%d", lastN(userID, 6), lastN(courseID, 6), t.UnixMilli())
}

func lastN(id uint, n int) string {
	s := strconv.FormatUint(uint64(id), 10)
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
