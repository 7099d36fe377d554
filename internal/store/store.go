package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/nanobanana/supermarket/internal/models"
)

var (
	ErrInvalidPhone     = errors.New("invalid phone number")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrDuplicate        = errors.New("phone number already registered")
	ErrNotFound         = errors.New("user does not exist")
	ErrWrongPassword    = errors.New("incorrect password")
	ErrExhausted        = errors.New("no generations remaining")
)

// mainland mobile numbers only, same pattern the product has always used
var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// ValidPhone reports whether phone matches the accepted mobile-number format.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Store is the account repository. Implementations must apply each mutation
// atomically so that concurrent charges cannot drive a counter negative.
type Store interface {
	// Register creates an account with the configured initial credits.
	Register(ctx context.Context, phone, password string) (*models.Account, error)
	// Authenticate checks credentials and stamps lastLoginAt on success.
	Authenticate(ctx context.Context, phone, password string) (*models.Account, error)
	// Get returns the account for phone, or ErrNotFound.
	Get(ctx context.Context, phone string) (*models.Account, error)
	// ChargeGeneration decrements remainingUses and increments the image
	// counters. It fails with ErrExhausted before any write when no credit
	// is left.
	ChargeGeneration(ctx context.Context, phone string) (*models.Usage, error)
	// ListAll returns every account, passwords included, plus the aggregate
	// tallies. Admin use only.
	ListAll(ctx context.Context) ([]models.Account, models.Stats, error)
	// ResetUses overrides remainingUses with a non-negative value.
	ResetUses(ctx context.Context, phone string, uses int) error

	Close() error
}

func validateCredentials(phone, password string) error {
	if !ValidPhone(phone) {
		return ErrInvalidPhone
	}
	if len(password) < 6 {
		return ErrPasswordTooShort
	}
	return nil
}
