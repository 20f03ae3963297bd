package model

import "time"

// Visibility controls which family role may see a task. Private
// variants store the role that may see it, resolved once when the
// task is written.
type Visibility string

const (
	VisibilityCommon  Visibility = "common"
	VisibilityHusband Visibility = "husband"
	VisibilityWife    Visibility = "wife"
)

// Task statuses. Status is a plain string column, but only these two
// values drive any logic.
const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// Recurrence rules. A recurring task never terminates: completing it
// reopens it at a shifted deadline.
const (
	RecurNone    = ""
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
)

// Task is a single item on the family list.
type Task struct {
	ID           uint       `gorm:"primaryKey"`
	FamilyCode   string     `gorm:"index;type:varchar(10)"`
	OwnerID      uint       `gorm:"index"`
	Title        string     `gorm:"type:varchar(255)"`
	Description  string     `gorm:"type:varchar(1024)"`
	Status       string     `gorm:"type:varchar(20);default:pending"`
	Visibility   Visibility `gorm:"type:varchar(20);default:common"`
	Deadline     *time.Time
	Recurrence   string `gorm:"type:varchar(20)"`
	ReminderSent bool   `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Subtasks     []Subtask `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

// IsRecurring reports whether the task reopens on completion.
func (t *Task) IsRecurring() bool {
	return t.Recurrence != RecurNone
}

// Subtask belongs to exactly one task and is destroyed with it.
type Subtask struct {
	ID     uint   `gorm:"primaryKey"`
	TaskID uint   `gorm:"index"`
	Title  string `gorm:"type:varchar(255)"`
	IsDone bool   `gorm:"default:false"`
}
