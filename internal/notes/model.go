package notes

import "time"

// Note models a persisted user note. ScheduleAt is nil for notes that are
// not reminders; such notes never appear in digest selection.
type Note struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Title      string     `gorm:"column:title;type:text;not null;default:''"`
	Content    string     `gorm:"column:content;type:text;not null;default:''"`
	ScheduleAt *time.Time `gorm:"column:schedule_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// UpdateFields describes a partial note update. Nil pointer fields are left
// untouched; ClearSchedule sets schedule_at back to null and wins over
// ScheduleAt when both are present.
type UpdateFields struct {
	Title         *string
	Content       *string
	ScheduleAt    *time.Time
	ClearSchedule bool
}

func (f UpdateFields) empty() bool {
	return f.Title == nil && f.Content == nil && f.ScheduleAt == nil && !f.ClearSchedule
}

// PageResult carries one page of notes plus the pagination envelope the API
// exposes.
type PageResult struct {
	Notes       []Note
	TotalPages  int64
	CurrentPage int
}
