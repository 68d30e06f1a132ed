package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
	"github.com/sahilchouksey/coursehub-api/services/storage"
	"github.com/sahilchouksey/coursehub-api/utils/pdfvalidation"
)

var (
	ErrNotEligible         = errors.New("course not completed")
	ErrCertificateNotFound = errors.New("certificate not found")
)

// CertificateStore persists certificates
type CertificateStore interface {
	FindCourse(ctx context.Context, id uint) (*model.Course, error)
	FindEnrollment(ctx context.Context, userID, courseID uint) (*model.Enrollment, error)
	FindCertificate(ctx context.Context, userID, courseID uint) (*model.Certificate, error)
	IssueCertificate(ctx context.Context, cert *model.Certificate, scope string) error
	SetFileURL(ctx context.Context, id uint, url string) error
}

// IssueCertificateInput requests a certificate for a completed course
type IssueCertificateInput struct {
	UserID   uint   `json:"-"`
	CourseID uint   `json:"course_id" validate:"required"`
	UserName string `json:"user_name" validate:"required,max=255"`
}

// CertificateResult is an issued certificate and its rendered PDF
type CertificateResult struct {
	Certificate *model.Certificate `json:"certificate"`
	Template    string             `json:"template"`
	PDFBase64   string             `json:"pdf_base64"`
}

// CertificateView is the binding for the certificate templates
type CertificateView struct {
	UserName          string
	CourseName        string
	CertificateNumber string
	DateIssued        string
	Issuer            string
}

// CertificateService issues completion certificates
type CertificateService struct {
	store  CertificateStore
	files  storage.Store // optional
	prefix string
	issuer string
	now    func() time.Time
}

// NewCertificateService creates a new certificate service. files may be nil.
func NewCertificateService(store CertificateStore, files storage.Store, prefix, issuer string) *CertificateService {
	if prefix == "" {
		prefix = "MGPS"
	}
	return &CertificateService{
		store:  store,
		files:  files,
		prefix: prefix,
		issuer: issuer,
		now:    time.Now,
	}
}

// Eligible reports whether an enrollment earned a certificate
func Eligible(course *model.Course, e *model.Enrollment) bool {
	if e.CompletedCourseStatus {
		return true
	}
	return course.CourseType == model.CourseTypePercentage && e.PercentageCompleted >= course.Percentage
}

// TemplateFor picks the certificate template of a course type
func TemplateFor(courseType string) string {
	switch courseType {
	case model.CourseTypePercentage:
		return "certificate/percentage"
	case model.CourseTypeTimeIntervals:
		return "certificate/time_intervals"
	default:
		return "certificate/default"
	}
}

// View maps a certificate to its template binding
func (s *CertificateService) View(cert *model.Certificate) CertificateView {
	return CertificateView{
		UserName:          cert.UserName,
		CourseName:        cert.CourseName,
		CertificateNumber: cert.CertificateNumber,
		DateIssued:        cert.DateIssued.Format("02 January 2006"),
		Issuer:            s.issuer,
	}
}

// Issue creates the certificate of a completed course, or returns the one
// already issued for it
func (s *CertificateService) Issue(ctx context.Context, in IssueCertificateInput) (*CertificateResult, error) {
	course, err := s.store.FindCourse(ctx, in.CourseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	enrollment, err := s.store.FindEnrollment(ctx, in.UserID, in.CourseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, err
	}
	if !Eligible(course, enrollment) {
		return nil, ErrNotEligible
	}

	cert, err := s.store.FindCertificate(ctx, in.UserID, in.CourseID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		cert = &model.Certificate{
			UserID:     in.UserID,
			CourseID:   in.CourseID,
			CourseName: course.Name,
			UserName:   strings.TrimSpace(in.UserName),
			DateIssued: s.now(),
		}
		err = s.store.IssueCertificate(ctx, cert, CertificateScope(s.prefix, cert.DateIssued))
		if errors.Is(err, repository.ErrCertificateExists) {
			cert, err = s.store.FindCertificate(ctx, in.UserID, in.CourseID)
		}
		if err != nil {
			return nil, err
		}
		log.Printf("[CERTIFICATE] issued %s to user %d for course %d", cert.CertificateNumber, in.UserID, in.CourseID)
	default:
		return nil, err
	}

	pdfBytes, err := s.RenderPDF(course.CourseType, s.View(cert))
	if err != nil {
		return nil, err
	}

	if s.files != nil && cert.FileURL == "" {
		key := "certificates/" + storage.SanitizeName(cert.CertificateNumber) + ".pdf"
		url, err := s.files.Upload(ctx, key, bytes.NewReader(pdfBytes), "application/pdf")
		if err != nil {
			log.Printf("[CERTIFICATE] failed to upload %s: %v", cert.CertificateNumber, err)
		} else if err := s.store.SetFileURL(ctx, cert.ID, url); err != nil {
			log.Printf("[CERTIFICATE] failed to save url of %s: %v", cert.CertificateNumber, err)
		} else {
			cert.FileURL = url
		}
	}

	return &CertificateResult{
		Certificate: cert,
		Template:    TemplateFor(course.CourseType),
		PDFBase64:   base64.StdEncoding.EncodeToString(pdfBytes),
	}, nil
}

// RenderPDF draws a landscape A4 certificate
func (s *CertificateService) RenderPDF(courseType string, v CertificateView) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate "+v.CertificateNumber, true)
	pdf.AddPage()

	pdf.SetDrawColor(45, 80, 22)
	pdf.SetLineWidth(2)
	pdf.Rect(10, 10, 277, 190, "D")
	pdf.SetLineWidth(0.5)
	pdf.Rect(15, 15, 267, 180, "D")

	pdf.SetY(40)
	pdf.SetTextColor(45, 80, 22)
	pdf.SetFont("Times", "B", 34)
	pdf.CellFormat(0, 16, "Certificate of Completion", "", 1, "C", false, 0, "")

	pdf.SetTextColor(40, 40, 40)
	pdf.SetFont("Times", "", 14)
	pdf.Ln(6)
	pdf.CellFormat(0, 8, "This certificate is proudly presented to", "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "B", 28)
	pdf.Ln(4)
	pdf.CellFormat(0, 14, v.UserName, "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "", 14)
	pdf.Ln(4)
	pdf.CellFormat(0, 8, certificateLine(courseType), "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "I", 22)
	pdf.Ln(2)
	pdf.CellFormat(0, 12, v.CourseName, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetY(170)
	pdf.CellFormat(0, 6, "Certificate No: "+v.CertificateNumber, "", 1, "C", false, 0, "")
	issued := "Issued on " + v.DateIssued
	if v.Issuer != "" {
		issued += " by " + v.Issuer
	}
	pdf.CellFormat(0, 6, issued, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	res, err := pdfvalidation.ValidatePDFBytes(buf.Bytes(), pdfvalidation.CertificateLimits)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, fmt.Errorf("rendered certificate is invalid: %s", res.Error)
	}
	return buf.Bytes(), nil
}

func certificateLine(courseType string) string {
	switch courseType {
	case model.CourseTypePercentage:
		return "for successfully completing the course with the required score in"
	case model.CourseTypeTimeIntervals:
		return "for attending every session of the live programme"
	default:
		return "for completing the course"
	}
}
