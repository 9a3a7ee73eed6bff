package repository

import (
	"errors"
	"time"

	accountdomain "pixeltrace/internal/account/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) Upsert(account *accountdomain.Account) (*accountdomain.Account, error) {
	var out accountdomain.Account
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing accountdomain.Account
		err := tx.Where("external_id = ?", account.ExternalID).First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A pre-provisioned account may exist under the same email
			// without an external id yet; attach rather than duplicate.
			err = tx.Where("email = ? AND (external_id IS NULL OR external_id = '')", account.Email).First(&existing).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				existing = accountdomain.Account{
					ID:        uuid.New().String(),
					CreatedAt: time.Now(),
				}
			}
		}

		existing.ExternalID = account.ExternalID
		existing.Email = account.Email
		if account.Name != "" {
			existing.Name = account.Name
		}
		existing.UpdatedAt = time.Now()

		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *accountRepository) FindByExternalID(externalID string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := r.db.Where("external_id = ?", externalID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByID(id string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}
