// Package repository wraps the GORM queries behind the payment, refund,
// progress, certificate, login and fulfillment flows.
package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrAlreadyRefunded      = errors.New("purchase already refunded")
	ErrDuplicateUser        = errors.New("user already exists")
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation matches postgres unique_violation (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key value")
}
