package assignmentrepo

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/assignment"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/metrics"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// openStates are the assignment states covered by the partial unique indexes.
var openStates = []int{int(assignment.Offered), int(assignment.Accepted)}

// GormAssignmentRepository implements ports.AssignmentRepository using GORM.
type GormAssignmentRepository struct {
	db *gorm.DB
}

// NewGormAssignmentRepository creates a new GORM assignment repository.
func NewGormAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

// Add saves a new assignment to the database.
//
// When the order or the driver already holds an open assignment the partial
// unique index rejects the insert; that duplicate-key error is surfaced as
// errs.ConcurrencyConflictError so racing sweep instances concede instead of
// failing the round.
func (r *GormAssignmentRepository) Add(ctx context.Context, aggregate *assignment.Assignment) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.ConcurrencyConflicts.WithLabelValues("assignment").Inc()
			return errs.NewConcurrencyConflictErrorWithCause("assignment", 0, 0, err)
		}
		return err
	}

	return nil
}

// Update saves an existing assignment with an optimistic concurrency check.
// A simultaneous accept and cancel resolve here: whichever write lands first
// wins, the loser gets errs.ConcurrencyConflictError.
func (r *GormAssignmentRepository) Update(ctx context.Context, aggregate *assignment.Assignment) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).Model(&AssignmentDTO{}).
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

// conflictFor distinguishes a version race from a missing row after a
// conditional write matched nothing.
func (r *GormAssignmentRepository) conflictFor(ctx context.Context, id kernel.UUID, expected int64) error {
	var current int64
	err := r.db.WithContext(ctx).Model(&AssignmentDTO{}).
		Where("id = ?", id.Bytes()).
		Pluck("version", &current).Error
	if err != nil {
		return err
	}
	if current == 0 {
		return errs.NewObjectNotFoundError("assignment", id.String())
	}

	metrics.ConcurrencyConflicts.WithLabelValues("assignment").Inc()
	return errs.NewConcurrencyConflictError("assignment", expected, current)
}

// Get retrieves an assignment by ID.
func (r *GormAssignmentRepository) Get(ctx context.Context, id kernel.UUID) (*assignment.Assignment, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto AssignmentDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("assignment", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

// GetOpenByOrder retrieves the order's single open assignment.
func (r *GormAssignmentRepository) GetOpenByOrder(ctx context.Context, orderID kernel.UUID) (*assignment.Assignment, error) {
	return r.getOpenBy(ctx, "order_id", orderID)
}

// GetOpenByDriver retrieves the driver's single open assignment.
func (r *GormAssignmentRepository) GetOpenByDriver(ctx context.Context, driverID kernel.UUID) (*assignment.Assignment, error) {
	return r.getOpenBy(ctx, "driver_id", driverID)
}

func (r *GormAssignmentRepository) getOpenBy(ctx context.Context, column string, id kernel.UUID) (*assignment.Assignment, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto AssignmentDTO
	err := r.db.WithContext(ctx).
		Where(column+" = ? AND state IN ?", id.Bytes(), openStates).
		First(&dto).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("assignment", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

// GetOpen retrieves every open assignment, oldest offer first.
func (r *GormAssignmentRepository) GetOpen(ctx context.Context) ([]*assignment.Assignment, error) {
	var dtos []AssignmentDTO
	err := r.db.WithContext(ctx).
		Where("state IN ?", openStates).
		Order("offered_at").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	assignments := make([]*assignment.Assignment, 0, len(dtos))
	for _, dto := range dtos {
		aggregate, aggregateErr := toDomain(dto)
		if aggregateErr != nil {
			return nil, aggregateErr
		}
		assignments = append(assignments, aggregate)
	}

	return assignments, nil
}

// GetExpiredOffers retrieves up to limit still-Offered assignments whose
// deadline has passed, oldest deadline first.
func (r *GormAssignmentRepository) GetExpiredOffers(ctx context.Context, now time.Time, limit int) ([]*assignment.Assignment, error) {
	var dtos []AssignmentDTO
	err := r.db.WithContext(ctx).
		Where("state = ? AND deadline <= ?", int(assignment.Offered), now).
		Order("deadline").
		Limit(limit).
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	assignments := make([]*assignment.Assignment, 0, len(dtos))
	for _, dto := range dtos {
		aggregate, aggregateErr := toDomain(dto)
		if aggregateErr != nil {
			return nil, aggregateErr
		}
		assignments = append(assignments, aggregate)
	}

	return assignments, nil
}

// GetAttemptedDriverIDs returns the distinct ids of every driver that has
// held an assignment for the order, in any state.
func (r *GormAssignmentRepository) GetAttemptedDriverIDs(ctx context.Context, orderID kernel.UUID) ([]kernel.UUID, error) {
	if err := orderID.Validate(); err != nil {
		return nil, err
	}

	var raw []uuid.UUID
	err := r.db.WithContext(ctx).Model(&AssignmentDTO{}).
		Distinct("driver_id").
		Where("order_id = ?", orderID.Bytes()).
		Pluck("driver_id", &raw).Error
	if err != nil {
		return nil, err
	}

	ids := make([]kernel.UUID, 0, len(raw))
	for _, driverID := range raw {
		id, idErr := kernel.UUIDFromBytes(driverID[:])
		if idErr != nil {
			return nil, idErr
		}
		ids = append(ids, id)
	}

	return ids, nil
}
