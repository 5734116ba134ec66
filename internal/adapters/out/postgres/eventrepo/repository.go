package eventrepo

import (
	"context"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/eventbus"
	"dispatch/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormEventRepository implements ports.EventRepository using GORM. It also
// satisfies eventbus.Log, so the bus replays reconnecting sessions straight
// from the same table the command handlers append to.
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GORM event repository.
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// appendLockID keys the advisory lock that serializes event appends.
const appendLockID int64 = 0x6576656e7473 // "events"

// Append inserts the events and returns them with their assigned sequences,
// in input order. Must run inside the same transaction as the aggregate
// writes that produced the events.
//
// Sequences are assigned under a transaction-scoped advisory lock held until
// commit, so sequence order always matches commit order: a row can never
// become visible while a lower sequence is still uncommitted. This is what
// lets the bus trust the log head as a replay baseline, and it keeps
// sequences dense because a rolled back append releases its numbers.
func (r *GormEventRepository) Append(ctx context.Context, events ...event.Event) ([]event.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		if err := e.EntityKind.Validate(); err != nil {
			return nil, err
		}
		dtos = append(dtos, fromDomain(e))
	}

	tx := r.db.WithContext(ctx)
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", appendLockID).Error; err != nil {
		return nil, err
	}

	var head int64
	err := tx.Model(&EventDTO{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&head).Error
	if err != nil {
		return nil, err
	}
	for i := range dtos {
		dtos[i].Seq = head + int64(i) + 1
	}

	if err := tx.Create(&dtos).Error; err != nil {
		return nil, err
	}

	appended := make([]event.Event, 0, len(dtos))
	for _, dto := range dtos {
		e, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		appended = append(appended, e)
	}

	return appended, nil
}

// ReadSince returns retained events with a sequence strictly greater than
// sinceSeq, ascending. When the pruning job already removed events the caller
// has not seen, the gap is unrecoverable and the method returns
// eventbus.ErrHistoryTruncated so the session falls back to a snapshot resync.
func (r *GormEventRepository) ReadSince(ctx context.Context, sinceSeq int64) ([]event.Event, error) {
	minSeq, err := r.minSeq(ctx)
	if err != nil {
		return nil, err
	}
	if minSeq == 0 {
		if sinceSeq > 0 {
			return nil, eventbus.ErrHistoryTruncated
		}
		return nil, nil
	}
	if minSeq > sinceSeq+1 {
		return nil, eventbus.ErrHistoryTruncated
	}

	var dtos []EventDTO
	err = r.db.WithContext(ctx).
		Where("seq > ?", sinceSeq).
		Order("seq").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	return toDomainSlice(dtos)
}

// ReadRange returns retained events with fromSeq <= sequence <= toSeq,
// ascending. Returns eventbus.ErrHistoryTruncated when part of the range was
// already pruned.
func (r *GormEventRepository) ReadRange(ctx context.Context, fromSeq, toSeq int64) ([]event.Event, error) {
	if fromSeq > toSeq {
		return nil, nil
	}

	minSeq, err := r.minSeq(ctx)
	if err != nil {
		return nil, err
	}
	if minSeq == 0 || fromSeq < minSeq {
		return nil, eventbus.ErrHistoryTruncated
	}

	var dtos []EventDTO
	err = r.db.WithContext(ctx).
		Where("seq >= ? AND seq <= ?", fromSeq, toSeq).
		Order("seq").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	return toDomainSlice(dtos)
}

// Head returns the newest assigned sequence, or 0 when the log is empty.
func (r *GormEventRepository) Head(ctx context.Context) (int64, error) {
	var head int64
	err := r.db.WithContext(ctx).Model(&EventDTO{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&head).Error
	if err != nil {
		return 0, err
	}

	return head, nil
}

// PruneToCount deletes the oldest events beyond the retained count and
// returns how many rows were removed.
func (r *GormEventRepository) PruneToCount(ctx context.Context, retain int) (int64, error) {
	if retain < 0 {
		return 0, errs.NewValueIsInvalidError("retain")
	}

	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM events WHERE seq <= COALESCE(
			(SELECT seq FROM events ORDER BY seq DESC LIMIT 1 OFFSET ?), 0)`,
		retain,
	)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (r *GormEventRepository) minSeq(ctx context.Context) (int64, error) {
	var minSeq int64
	err := r.db.WithContext(ctx).Model(&EventDTO{}).
		Select("COALESCE(MIN(seq), 0)").
		Scan(&minSeq).Error
	if err != nil {
		return 0, err
	}

	return minSeq, nil
}

func toDomainSlice(dtos []EventDTO) ([]event.Event, error) {
	events := make([]event.Event, 0, len(dtos))
	for _, dto := range dtos {
		e, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, nil
}
