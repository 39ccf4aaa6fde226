package persistence

import (
	"errors"

	"gorm.io/gorm"

	"github.com/stockledger/backend/internal/domain/shared"
)

// storageErr translates an error escaping the data layer into domain
// terms. A missing record maps to the not-found sentinel and domain
// errors pass through untouched. Anything else is a driver or
// connection fault and surfaces as storage-unavailable with the
// failing operation attached.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return shared.ErrStorageUnavailable.WithDetails("%s: %v", op, err)
}
