package services

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/utils/pdfvalidation"
)

// CompanyInfo holds the seller details printed on invoices
type CompanyInfo struct {
	Name     string
	Address  string
	PAN      string
	State    string
	HSN      string
	CIN      string
	GST      string
	Email    string
	Helpline string
}

// InvoiceCustomer is the buyer snapshot printed on an invoice
type InvoiceCustomer struct {
	Name    string
	Email   string
	Mobile  string
	City    string
	State   string
	Country string
}

// InvoiceData is the binding for the invoice template and PDF
type InvoiceData struct {
	Company          CompanyInfo
	Customer         InvoiceCustomer
	InvoiceNumber    string
	TransactionID    string
	Date             string
	CourseName       string
	PaymentMode      string
	AmountWithoutGST string
	CGST             string
	SGST             string
	IGST             string
	TotalGST         string
	TotalPaid        string
	IntraState       bool
}

// InvoiceService renders invoices for purchases
type InvoiceService struct {
	company CompanyInfo
	tempDir string
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(company CompanyInfo, tempDir string) *InvoiceService {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &InvoiceService{company: company, tempDir: tempDir}
}

// Company returns the configured seller details
func (s *InvoiceService) Company() CompanyInfo {
	return s.company
}

// Build maps a purchase to the invoice binding
func (s *InvoiceService) Build(p *model.CoursePurchase) InvoiceData {
	courseName := p.CourseName
	if courseName == "" {
		courseName = p.Course.Name
	}
	return InvoiceData{
		Company: s.company,
		Customer: InvoiceCustomer{
			Name:    p.CustomerName,
			Email:   p.CustomerEmail,
			Mobile:  p.CustomerMobile,
			City:    p.CustomerCity,
			State:   p.CustomerState,
			Country: p.CustomerCountry,
		},
		InvoiceNumber:    p.Invoice(),
		TransactionID:    p.TransactionID,
		Date:             p.TransactionDate.Format("02 Jan 2006"),
		CourseName:       courseName,
		PaymentMode:      p.PaymentMode,
		AmountWithoutGST: p.AmountWithoutGST.StringFixed(2),
		CGST:             p.CGST.StringFixed(2),
		SGST:             p.SGST.StringFixed(2),
		IGST:             p.IGST.StringFixed(2),
		TotalGST:         p.TotalGST.StringFixed(2),
		TotalPaid:        p.TotalPaidAmount.StringFixed(2),
		IntraState:       p.IsIntraState(),
	}
}

// RenderPDF writes the invoice as an A4 PDF
func (s *InvoiceService) RenderPDF(w io.Writer, d InvoiceData) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+d.InvoiceNumber, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(120, 8, d.Company.Name, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(70, 8, "TAX INVOICE", "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(120, 4.5, d.Company.Address, "", "L", false)
	pdf.CellFormat(0, 4.5, fmt.Sprintf("GSTIN: %s  PAN: %s  CIN: %s", d.Company.GST, d.Company.PAN, d.Company.CIN), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 4.5, fmt.Sprintf("%s  %s", d.Company.Email, d.Company.Helpline), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	row := func(label, value string) {
		pdf.CellFormat(50, 7, label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(140, 7, value, "1", 1, "L", false, 0, "")
	}
	row("Invoice No", d.InvoiceNumber)
	row("Date", d.Date)
	row("Transaction ID", d.TransactionID)
	row("Payment Mode", d.PaymentMode)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(190, 7, "Billed To", "1", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	row("Name", d.Customer.Name)
	row("Email", d.Customer.Email)
	row("Mobile", d.Customer.Mobile)
	row("Place of supply", fmt.Sprintf("%s, %s, %s", d.Customer.City, d.Customer.State, d.Customer.Country))
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(110, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, "HSN/SAC", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, "Amount (Rs.)", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(110, 7, d.CourseName, "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, d.Company.HSN, "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, d.AmountWithoutGST, "1", 1, "R", false, 0, "")

	amount := func(label, value string) {
		pdf.CellFormat(150, 7, label, "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, value, "1", 1, "R", false, 0, "")
	}
	if d.IntraState {
		amount("CGST", d.CGST)
		amount("SGST", d.SGST)
	} else {
		amount("IGST", d.IGST)
	}
	amount("Total GST", d.TotalGST)
	pdf.SetFont("Helvetica", "B", 10)
	amount("Total Paid", d.TotalPaid)

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "This is a computer generated invoice and does not require a signature.", "", 1, "C", false, 0, "")

	return pdf.Output(w)
}

// RenderToTempFile renders the invoice into a temp file and validates it. The
// caller removes the file once it has been sent.
func (s *InvoiceService) RenderToTempFile(d InvoiceData) (string, error) {
	var buf bytes.Buffer
	if err := s.RenderPDF(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render invoice: %w", err)
	}

	res, err := pdfvalidation.ValidatePDFBytes(buf.Bytes(), pdfvalidation.InvoiceLimits)
	if err != nil {
		return "", err
	}
	if !res.Valid {
		return "", fmt.Errorf("rendered invoice is invalid: %s", res.Error)
	}

	f, err := os.CreateTemp(s.tempDir, "invoice_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create invoice file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write invoice file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}

// InvoiceFileName is the attachment name of an invoice
func InvoiceFileName(invoiceNumber string) string {
	return filepath.Base(fmt.Sprintf("invoice_%s.pdf", invoiceNumber))
}
