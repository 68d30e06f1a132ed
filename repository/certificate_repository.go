package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/gorm"
)

// ErrCertificateExists is returned when a concurrent request issued first
var ErrCertificateExists = errors.New("certificate already issued")

// CertificateRepository persists issued certificates
type CertificateRepository struct {
	queries
}

// NewCertificateRepository creates a new certificate repository
func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{queries{db: db}}
}

// FindCertificate loads the certificate of a user for a course
func (r *CertificateRepository) FindCertificate(ctx context.Context, userID, courseID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&cert).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &cert, nil
}

// FindCertificateByID loads a certificate owned by userID
func (r *CertificateRepository) FindCertificateByID(ctx context.Context, id, userID uint) (*model.Certificate, error) {
	var cert model.Certificate
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&cert).Error; err != nil {
		return nil, notFound(err)
	}
	return &cert, nil
}

// ListCertificates returns the certificates of a user, newest first
func (r *CertificateRepository) ListCertificates(ctx context.Context, userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("date_issued DESC").Find(&certs).Error
	return certs, err
}

// IssueCertificate numbers and stores a certificate in one transaction
func (r *CertificateRepository) IssueCertificate(ctx context.Context, cert *model.Certificate, scope string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := nextSequence(tx, scope)
		if err != nil {
			return err
		}
		cert.CertificateNumber = model.FormatSequence(scope, n)
		if err := tx.Create(cert).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrCertificateExists
			}
			return fmt.Errorf("failed to save certificate: %w", err)
		}
		return nil
	})
}

// SetFileURL stores where the rendered certificate was uploaded
func (r *CertificateRepository) SetFileURL(ctx context.Context, id uint, url string) error {
	return r.db.WithContext(ctx).Model(&model.Certificate{}).Where("id = ?", id).Update("file_url", url).Error
}
