package permission

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrDuplicateGrant is returned when inserting a (group, url, method)
	// tuple that already exists. Use UpsertGrant or ReplaceGroupGrants instead.
	ErrDuplicateGrant = errors.New("permission: grant already exists for group, url and method")
	ErrGrantNotFound  = errors.New("permission: grant not found")
	ErrGroupNotFound  = errors.New("permission: group not found")
	ErrInvalidMethod  = errors.New("permission: invalid http method")
	ErrInvalidURL     = errors.New("permission: url is empty after normalization")

	// ErrStoreUnavailable wraps every persistence failure so callers can
	// tell "the store failed" apart from "no grant matched".
	ErrStoreUnavailable = errors.New("permission: store unavailable")
)

// storeErr passes domain errors through and wraps everything else in
// ErrStoreUnavailable.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateGrant
	case errors.Is(err, ErrDuplicateGrant),
		errors.Is(err, ErrGrantNotFound),
		errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrInvalidMethod),
		errors.Is(err, ErrInvalidURL),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
