package repository

import (
	"errors"
	"time"

	trackdomain "pixeltrace/internal/track/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// trackRepository implements TrackRepository interface
type trackRepository struct {
	db *gorm.DB
}

// NewTrackRepository creates a new instance of trackRepository
func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &trackRepository{
		db: db,
	}
}

func (r *trackRepository) scoped(tx *gorm.DB, scope Scope) *gorm.DB {
	q := tx.Model(&trackdomain.TrackedItem{})
	if scope.OwnerID != "" {
		q = q.Where("owner_id = ?", scope.OwnerID)
	}
	if len(scope.IDs) > 0 {
		q = q.Where("id IN ?", scope.IDs)
	}
	if scope.SenderIdentity != "" {
		q = q.Where("sender_identity = ?", scope.SenderIdentity)
	}
	if scope.UnownedOnly {
		q = q.Where("owner_id IS NULL")
	}
	return q
}

func preloadEvents(db *gorm.DB) *gorm.DB {
	return db.Order("open_events.opened_at DESC")
}

func (r *trackRepository) FindPage(scope Scope, offset, limit int) ([]trackdomain.TrackedItem, int64, error) {
	var total int64
	if err := r.scoped(r.db, scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []trackdomain.TrackedItem
	err := r.scoped(r.db, scope).
		Preload("OpenEvents", preloadEvents).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *trackRepository) FindByIDs(ids []string) ([]trackdomain.TrackedItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []trackdomain.TrackedItem
	err := r.db.
		Preload("OpenEvents", preloadEvents).
		Where("id IN ?", ids).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *trackRepository) LatestOpenEvent(trackID string) (*trackdomain.OpenEvent, error) {
	var event trackdomain.OpenEvent
	err := r.db.
		Where("tracked_item_id = ?", trackID).
		Order("opened_at DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *trackRepository) EnsureItem(trackID string) (*trackdomain.TrackedItem, error) {
	subject := trackdomain.LazySubject
	now := time.Now()
	item := trackdomain.TrackedItem{ID: trackID}
	result := r.db.Where("id = ?", trackID).Attrs(trackdomain.TrackedItem{
		ID:          trackID,
		Subject:     &subject,
		LazyCreated: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}).FirstOrCreate(&item)
	if result.Error != nil {
		return nil, result.Error
	}
	return &item, nil
}

func (r *trackRepository) CreateOpenEvent(event *trackdomain.OpenEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	return r.db.Create(event).Error
}

func (r *trackRepository) DeleteByIDs(ids []string, callerAccountID string, senderIdentity string) (int64, int64, error) {
	if len(ids) == 0 {
		return 0, 0, nil
	}

	var deleted, foreign int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&trackdomain.TrackedItem{}).Where("id IN ?", ids)
		if senderIdentity != "" {
			q = q.Where("sender_identity = ?", senderIdentity)
		}

		var items []trackdomain.TrackedItem
		if err := q.Find(&items).Error; err != nil {
			return err
		}

		targets := make([]string, 0, len(items))
		for _, item := range items {
			if item.Claimed() && (callerAccountID == "" || *item.OwnerID != callerAccountID) {
				foreign++
				continue
			}
			targets = append(targets, item.ID)
		}
		if foreign > 0 {
			// Mixed-ownership batches are refused wholesale.
			return nil
		}
		if len(targets) == 0 {
			return nil
		}

		// Events first: the cascade invariant is kept explicit even
		// where the store would enforce it declaratively.
		if err := tx.Where("tracked_item_id IN ?", targets).Delete(&trackdomain.OpenEvent{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", targets).Delete(&trackdomain.TrackedItem{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, foreign, nil
}

func (r *trackRepository) DeleteByScope(scope Scope) (int64, error) {
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var targets []string
		if err := r.scoped(tx, scope).Pluck("id", &targets).Error; err != nil {
			return err
		}
		if len(targets) == 0 {
			return nil
		}

		if err := tx.Where("tracked_item_id IN ?", targets).Delete(&trackdomain.OpenEvent{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", targets).Delete(&trackdomain.TrackedItem{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *trackRepository) LinkBatch(accountID string, items []trackdomain.TrackedItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	var conflicts int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// The conflict check runs inside the transaction so a
		// concurrent claim of the same ids serializes against us.
		err := tx.Model(&trackdomain.TrackedItem{}).
			Where("id IN ? AND owner_id IS NOT NULL AND owner_id <> ?", ids, accountID).
			Count(&conflicts).Error
		if err != nil {
			return err
		}
		if conflicts > 0 {
			return nil
		}

		now := time.Now()
		for i := range items {
			item := items[i]
			item.OwnerID = &accountID
			item.UpdatedAt = now

			var existing trackdomain.TrackedItem
			err := tx.Where("id = ?", item.ID).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				item.CreatedAt = now
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
				continue
			} else if err != nil {
				return err
			}

			existing.OwnerID = &accountID
			existing.UpdatedAt = now
			existing.LazyCreated = false
			if item.SenderIdentity != "" {
				existing.SenderIdentity = item.SenderIdentity
			}
			if item.Subject != nil {
				existing.Subject = item.Subject
			}
			if item.Recipient != nil {
				existing.Recipient = item.Recipient
			}
			if item.CC != nil {
				existing.CC = item.CC
			}
			if item.BCC != nil {
				existing.BCC = item.BCC
			}
			if item.BodyPreview != nil {
				existing.BodyPreview = item.BodyPreview
			}
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return conflicts, nil
}

func (r *trackRepository) CountOwnedByOther(ids []string, accountID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	q := r.db.Model(&trackdomain.TrackedItem{}).Where("id IN ? AND owner_id IS NOT NULL", ids)
	if accountID != "" {
		q = q.Where("owner_id <> ?", accountID)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
