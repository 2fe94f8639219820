package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()

	// ErrNoteNotFound indicates that no note exists for the requested id.
	ErrNoteNotFound = errors.New("notes: note not found")
)

// StoreError wraps a failed store operation with a stable machine-readable
// code of the form "operation.reason".
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

const (
	opStoreNew      = "notes.store.new"
	opInsert        = "notes.insert"
	opGet           = "notes.get"
	opFindScheduled = "notes.find_scheduled"
	opUpdate        = "notes.update"
	opDelete        = "notes.delete"
	opCount         = "notes.count"
	opListPage      = "notes.list_page"
)

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}

// StoreConfig carries the dependencies for NewStore.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store persists notes through an injected database handle. The dispatch
// pipeline only ever calls FindScheduledInRange; the remaining operations
// back the CRUD API.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newStoreError(opStoreNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Insert persists a new note and returns it with its assigned id. Id
// allocation is delegated to the database's autoincrement primary key, so
// concurrent inserts can never collide.
func (s *Store) Insert(ctx context.Context, title, content string, scheduleAt *time.Time) (Note, error) {
	note := Note{
		Title:      title,
		Content:    content,
		ScheduleAt: toUTC(scheduleAt),
		CreatedAt:  s.clock().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		s.logError(opInsert, "insert_failed", err)
		return Note{}, newStoreError(opInsert, "insert_failed", err)
	}

	return note, nil
}

// GetByID loads one note, reporting ErrNoteNotFound when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id int64) (Note, error) {
	var note Note
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, newStoreError(opGet, "not_found", ErrNoteNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.Int64("note_id", id))
		return Note{}, newStoreError(opGet, "query_failed", err)
	}
	return note, nil
}

// FindScheduledInRange returns all reminder notes whose schedule time falls
// in the half-open interval [start, end), in insertion order. Notes without
// a schedule time never match. A query failure is returned as an error, not
// as an empty result.
func (s *Store) FindScheduledInRange(ctx context.Context, start, end time.Time) ([]Note, error) {
	var matched []Note
	err := s.db.WithContext(ctx).
		Where("schedule_at IS NOT NULL AND schedule_at >= ? AND schedule_at < ?", start.UTC(), end.UTC()).
		Order("id ASC").
		Find(&matched).Error
	if err != nil {
		s.logError(opFindScheduled, "query_failed", err,
			zap.Time("start", start),
			zap.Time("end", end))
		return nil, newStoreError(opFindScheduled, "query_failed", err)
	}
	return matched, nil
}

// Update applies a partial update and returns the refreshed note. Title,
// content and schedule time are independently settable; the schedule time
// can be cleared back to null.
func (s *Store) Update(ctx context.Context, id int64, fields UpdateFields) (Note, error) {
	if fields.empty() {
		return s.GetByID(ctx, id)
	}

	changes := map[string]any{}
	if fields.Title != nil {
		changes["title"] = *fields.Title
	}
	if fields.Content != nil {
		changes["content"] = *fields.Content
	}
	if fields.ClearSchedule {
		changes["schedule_at"] = nil
	} else if fields.ScheduleAt != nil {
		changes["schedule_at"] = fields.ScheduleAt.UTC()
	}

	result := s.db.WithContext(ctx).Model(&Note{}).Where("id = ?", id).Updates(changes)
	if result.Error != nil {
		s.logError(opUpdate, "update_failed", result.Error, zap.Int64("note_id", id))
		return Note{}, newStoreError(opUpdate, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Note{}, newStoreError(opUpdate, "not_found", ErrNoteNotFound)
	}

	return s.GetByID(ctx, id)
}

// DeleteByID removes one note, reporting ErrNoteNotFound when nothing was
// deleted.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Note{})
	if result.Error != nil {
		s.logError(opDelete, "delete_failed", result.Error, zap.Int64("note_id", id))
		return newStoreError(opDelete, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newStoreError(opDelete, "not_found", ErrNoteNotFound)
	}
	return nil
}

// CountAll reports the total number of stored notes.
func (s *Store) CountAll(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Note{}).Count(&total).Error; err != nil {
		s.logError(opCount, "count_failed", err)
		return 0, newStoreError(opCount, "count_failed", err)
	}
	return total, nil
}

// ListPage returns one page of notes in insertion order together with the
// pagination envelope. Page numbers start at 1; out-of-range pages yield an
// empty slice, not an error.
func (s *Store) ListPage(ctx context.Context, page, limit int) (PageResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}

	total, err := s.CountAll(ctx)
	if err != nil {
		return PageResult{}, err
	}

	var rows []Note
	offset := (page - 1) * limit
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error; err != nil {
		s.logError(opListPage, "query_failed", err, zap.Int("page", page), zap.Int("limit", limit))
		return PageResult{}, newStoreError(opListPage, "query_failed", err)
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return PageResult{Notes: rows, TotalPages: totalPages, CurrentPage: page}, nil
}

const defaultPageLimit = 5

func toUTC(instant *time.Time) *time.Time {
	if instant == nil {
		return nil
	}
	utc := instant.UTC()
	return &utc
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("notes store error", attrs...)
}
