package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"family-tasks/internal/model"
)

// TaskRepository handles CRUD for tasks and their subtasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// ListByFamily returns the family's tasks newest first, subtasks
// preloaded.
func (r *TaskRepository) ListByFamily(ctx context.Context, familyCode string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Preload("Subtasks").
		Where("family_code = ?", familyCode).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("Subtasks").First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// Delete removes the task and every subtask it owns.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Subtask{}).Error; err != nil {
			return fmt.Errorf("delete subtasks: %w", err)
		}
		if err := tx.Delete(&model.Task{}, taskID).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

// DueForReminder selects pending tasks whose deadline falls at or
// before the horizon and which have not yet been reminded.
func (r *TaskRepository) DueForReminder(ctx context.Context, horizon time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline <= ? AND reminder_sent = ?",
			model.StatusPending, horizon, false).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkReminded flips reminder_sent for the whole batch in one statement.
func (r *TaskRepository) MarkReminded(ctx context.Context, taskIDs []uint) error {
	if len(taskIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id IN ?", taskIDs).
		Update("reminder_sent", true).Error; err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}

// CountPending counts the family's open tasks.
func (r *TaskRepository) CountPending(ctx context.Context, familyCode string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("family_code = ? AND status = ?", familyCode, model.StatusPending).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TaskRepository) AddSubtask(ctx context.Context, subtask *model.Subtask) error {
	if err := r.db.WithContext(ctx).Create(subtask).Error; err != nil {
		return fmt.Errorf("create subtask: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindSubtask(ctx context.Context, subtaskID uint) (*model.Subtask, error) {
	var subtask model.Subtask
	if err := r.db.WithContext(ctx).First(&subtask, subtaskID).Error; err != nil {
		return nil, err
	}
	return &subtask, nil
}

func (r *TaskRepository) SaveSubtask(ctx context.Context, subtask *model.Subtask) error {
	if err := r.db.WithContext(ctx).Save(subtask).Error; err != nil {
		return fmt.Errorf("save subtask: %w", err)
	}
	return nil
}

// ResetSubtasks clears the done flag on every subtask of the task.
func (r *TaskRepository) ResetSubtasks(ctx context.Context, taskID uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Subtask{}).
		Where("task_id = ?", taskID).
		Update("is_done", false).Error; err != nil {
		return fmt.Errorf("reset subtasks: %w", err)
	}
	return nil
}
