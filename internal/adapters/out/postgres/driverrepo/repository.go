package driverrepo

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/metrics"
	"dispatch/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormDriverRepository implements ports.DriverRepository using GORM.
type GormDriverRepository struct {
	db *gorm.DB
}

// NewGormDriverRepository creates a new GORM driver repository.
func NewGormDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

// Add saves a new driver to the database.
func (r *GormDriverRepository) Add(ctx context.Context, aggregate *driver.Driver) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	return r.db.WithContext(ctx).Create(&dto).Error
}

// Update saves an existing driver with an optimistic concurrency check on the
// availability version counter. A lost race surfaces as
// errs.ConcurrencyConflictError with the winner's version.
func (r *GormDriverRepository) Update(ctx context.Context, aggregate *driver.Driver) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).Model(&DriverDTO{}).
		Where("id = ? AND version = ?", dto.ID, dto.Version-1).
		Select("*").Omit("id").Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.conflictFor(ctx, aggregate.ID(), dto.Version-1)
	}

	return nil
}

// UpdatePosition persists the driver's position snapshot without touching the
// version counter. The write lands only when the stored snapshot is absent or
// strictly older than the report; a stale report is dropped and the method
// reports false.
func (r *GormDriverRepository) UpdatePosition(ctx context.Context, aggregate *driver.Driver) (bool, error) {
	if err := aggregate.Validate(); err != nil {
		return false, err
	}

	position := aggregate.Position()
	if position.IsZero() {
		return false, errs.NewValueIsRequiredError("position")
	}

	result := r.db.WithContext(ctx).Model(&DriverDTO{}).
		Where("id = ? AND (position_recorded_at IS NULL OR position_recorded_at < ?)",
			aggregate.ID().Bytes(), position.RecordedAt()).
		Updates(map[string]any{
			"position_lat":         position.Point().Lat(),
			"position_lon":         position.Point().Lon(),
			"position_recorded_at": position.RecordedAt(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// conflictFor distinguishes a version race from a missing row after a
// conditional write matched nothing.
func (r *GormDriverRepository) conflictFor(ctx context.Context, id kernel.UUID, expected int64) error {
	var current int64
	err := r.db.WithContext(ctx).Model(&DriverDTO{}).
		Where("id = ?", id.Bytes()).
		Pluck("version", &current).Error
	if err != nil {
		return err
	}
	if current == 0 {
		return errs.NewObjectNotFoundError("driver", id.String())
	}

	metrics.ConcurrencyConflicts.WithLabelValues("driver").Inc()
	return errs.NewConcurrencyConflictError("driver", expected, current)
}

// Get retrieves a driver by ID.
func (r *GormDriverRepository) Get(ctx context.Context, id kernel.UUID) (*driver.Driver, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto DriverDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("driver", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

// GetAll retrieves every registered driver.
func (r *GormDriverRepository) GetAll(ctx context.Context) ([]*driver.Driver, error) {
	var dtos []DriverDTO
	if err := r.db.WithContext(ctx).Find(&dtos).Error; err != nil {
		return nil, err
	}

	drivers := make([]*driver.Driver, 0, len(dtos))
	for _, dto := range dtos {
		aggregate, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, aggregate)
	}

	return drivers, nil
}
