package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"family-tasks/internal/model"
	"family-tasks/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description string
	Visibility  string // free text: "common" (default) or "private"
	Deadline    *time.Time
	Recurrence  string
}

// TaskPatch carries a partial update. Set flags distinguish "field not
// sent" from "field sent empty": an unset field is untouched, a set
// field is applied even when its value is empty.
type TaskPatch struct {
	Title          string
	TitleSet       bool
	Description    string
	DescriptionSet bool
	Status         string
	StatusSet      bool
	Visibility     string
	VisibilitySet  bool
	Deadline       *time.Time
	DeadlineSet    bool
	Recurrence     string
	RecurrenceSet  bool
}

// CompletionEvent tells the caller what a completion did, so the
// partner notification can be worded accordingly.
type CompletionEvent int

const (
	// EventNone: nothing happened (task was already done).
	EventNone CompletionEvent = iota
	// EventCompleted: a one-off task reached its terminal done state.
	EventCompleted
	// EventRecurred: a recurring task was completed and reopened at a
	// shifted deadline.
	EventRecurred
)

// TaskService owns the task lifecycle: status transitions, recurring
// rollover, subtasks, and the partner notifications they trigger.
type TaskService struct {
	taskRepo   *repository.TaskRepository
	memberRepo *repository.MemberRepository
	notifier   Notifier
}

func NewTaskService(taskRepo *repository.TaskRepository, memberRepo *repository.MemberRepository, notifier Notifier) *TaskService {
	return &TaskService{taskRepo: taskRepo, memberRepo: memberRepo, notifier: notifier}
}

// Create validates the input, resolves the free-text visibility
// against the creator's role and stores the task. For a common task
// the partner is notified best-effort.
func (s *TaskService) Create(ctx context.Context, member *model.Member, input TaskInput) (*model.Task, error) {
	if !member.InFamily() {
		return nil, fmt.Errorf("%w: member has no family", ErrAccessDenied)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := validateRecurrence(input.Recurrence); err != nil {
		return nil, err
	}

	visibility, err := ResolveVisibility(input.Visibility, member.Role)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		FamilyCode:  *member.FamilyCode,
		OwnerID:     member.ID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      model.StatusPending,
		Visibility:  visibility,
		Deadline:    input.Deadline,
		Recurrence:  input.Recurrence,
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}

	log.Printf("[info] task created id=%d family=%s visibility=%s", task.ID, task.FamilyCode, task.Visibility)

	if task.Visibility == model.VisibilityCommon {
		s.notifyPartner(ctx, member, newTaskText(&task))
	}

	return &task, nil
}

// Update applies the fields present in the patch. A deadline change
// resets the reminder flag so the next crossing of the new deadline
// reminds again; setting status to done routes through the completion
// transition exactly once.
func (s *TaskService) Update(ctx context.Context, member *model.Member, taskID uint, patch TaskPatch) (*model.Task, error) {
	task, err := s.loadForMember(ctx, member, taskID)
	if err != nil {
		return nil, err
	}

	if patch.RecurrenceSet {
		if err := validateRecurrence(patch.Recurrence); err != nil {
			return nil, err
		}
	}

	var visibility model.Visibility
	if patch.VisibilitySet {
		// Re-resolution uses the updating member's current role.
		visibility, err = ResolveVisibility(patch.Visibility, member.Role)
		if err != nil {
			return nil, err
		}
	}

	if patch.TitleSet {
		task.Title = patch.Title
	}
	if patch.DescriptionSet {
		task.Description = patch.Description
	}
	if patch.VisibilitySet {
		task.Visibility = visibility
	}
	if patch.RecurrenceSet {
		task.Recurrence = patch.Recurrence
	}
	if patch.DeadlineSet {
		task.Deadline = patch.Deadline
		task.ReminderSent = false
	}
	if task.Deadline == nil {
		task.ReminderSent = false
	}

	event := EventNone
	if patch.StatusSet {
		if patch.Status == model.StatusDone {
			event = s.applyCompletion(ctx, task)
		} else {
			task.Status = patch.Status
		}
	}

	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}

	s.announceCompletion(ctx, member, task, event)
	return task, nil
}

// Complete marks a task done. A one-off task terminates; a recurring
// task reopens with its deadline shifted by the recurrence period.
// Completing an already-done one-off task is a no-op.
func (s *TaskService) Complete(ctx context.Context, member *model.Member, taskID uint) (*model.Task, CompletionEvent, error) {
	task, err := s.loadForMember(ctx, member, taskID)
	if err != nil {
		return nil, EventNone, err
	}

	event := s.applyCompletion(ctx, task)
	if event == EventNone {
		return task, EventNone, nil
	}

	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, EventNone, err
	}

	s.announceCompletion(ctx, member, task, event)
	return task, event, nil
}

// applyCompletion performs the completion transition in memory and on
// the task's subtasks. It returns EventNone for the idempotent
// done-again case.
func (s *TaskService) applyCompletion(ctx context.Context, task *model.Task) CompletionEvent {
	if !task.IsRecurring() {
		if task.Status == model.StatusDone {
			return EventNone
		}
		task.Status = model.StatusDone
		return EventCompleted
	}

	// A recurring task never becomes done: it reopens at the next
	// occurrence. The flat +30d month shift is intentional.
	task.Status = model.StatusPending
	task.ReminderSent = false
	if task.Deadline != nil {
		next := shiftDeadline(*task.Deadline, task.Recurrence)
		task.Deadline = &next
	}
	for i := range task.Subtasks {
		task.Subtasks[i].IsDone = false
	}
	if err := s.taskRepo.ResetSubtasks(ctx, task.ID); err != nil {
		log.Printf("reset subtasks for task %d: %v", task.ID, err)
	}
	return EventRecurred
}

// Delete removes the task and its subtasks. Hard delete, no tombstone.
func (s *TaskService) Delete(ctx context.Context, member *model.Member, taskID uint) error {
	task, err := s.loadForMember(ctx, member, taskID)
	if err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		return err
	}
	log.Printf("[info] task deleted id=%d family=%s", task.ID, task.FamilyCode)
	return nil
}

// ListVisible returns the family's tasks the member may see, newest
// first.
func (s *TaskService) ListVisible(ctx context.Context, member *model.Member) ([]model.Task, error) {
	if !member.InFamily() {
		return nil, fmt.Errorf("%w: member has no family", ErrAccessDenied)
	}
	tasks, err := s.taskRepo.ListByFamily(ctx, *member.FamilyCode)
	if err != nil {
		return nil, err
	}
	return ListVisible(member.Role, tasks), nil
}

// AddSubtask appends a subtask. Subtask operations never trigger
// parent-task transitions.
func (s *TaskService) AddSubtask(ctx context.Context, member *model.Member, taskID uint, title string) (*model.Subtask, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: subtask title is required", ErrValidation)
	}
	task, err := s.loadForMember(ctx, member, taskID)
	if err != nil {
		return nil, err
	}
	subtask := model.Subtask{TaskID: task.ID, Title: strings.TrimSpace(title)}
	if err := s.taskRepo.AddSubtask(ctx, &subtask); err != nil {
		return nil, err
	}
	return &subtask, nil
}

// ToggleSubtask sets a subtask's done flag.
func (s *TaskService) ToggleSubtask(ctx context.Context, member *model.Member, subtaskID uint, isDone bool) (*model.Subtask, error) {
	subtask, err := s.taskRepo.FindSubtask(ctx, subtaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: subtask %d", ErrNotFound, subtaskID)
		}
		return nil, err
	}
	if _, err := s.loadForMember(ctx, member, subtask.TaskID); err != nil {
		return nil, err
	}
	subtask.IsDone = isDone
	if err := s.taskRepo.SaveSubtask(ctx, subtask); err != nil {
		return nil, err
	}
	return subtask, nil
}

// loadForMember fetches a task and checks that the member may act on
// it: same family, and visible to the member's role.
func (s *TaskService) loadForMember(ctx context.Context, member *model.Member, taskID uint) (*model.Task, error) {
	if !member.InFamily() {
		return nil, fmt.Errorf("%w: member has no family", ErrAccessDenied)
	}
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task %d", ErrNotFound, taskID)
		}
		return nil, err
	}
	if task.FamilyCode != *member.FamilyCode {
		return nil, fmt.Errorf("%w: task belongs to another family", ErrAccessDenied)
	}
	if !CanView(member.Role, task) {
		return nil, fmt.Errorf("%w: task is private to the partner", ErrAccessDenied)
	}
	return task, nil
}

// announceCompletion tells the partner about a completed common task.
// Delivery is best-effort and never affects the mutation.
func (s *TaskService) announceCompletion(ctx context.Context, member *model.Member, task *model.Task, event CompletionEvent) {
	if event == EventNone || task.Visibility != model.VisibilityCommon {
		return
	}
	s.notifyPartner(ctx, member, completionText(task, event))
}

func (s *TaskService) notifyPartner(ctx context.Context, member *model.Member, text string) {
	partner, err := s.memberRepo.FindPartner(ctx, member)
	if err != nil {
		log.Printf("find partner for member %d: %v", member.ID, err)
		return
	}
	if partner == nil {
		return
	}
	if res := s.notifier.Notify(ctx, partner.TelegramID, text); !res.Delivered {
		log.Printf("notify partner %d: %v", partner.TelegramID, res.Err)
	}
}

func newTaskText(task *model.Task) string {
	return fmt.Sprintf("📢 <b>Новая задача от партнёра!</b>\n📌 %s", html.EscapeString(task.Title))
}

func completionText(task *model.Task, event CompletionEvent) string {
	if event == EventRecurred {
		text := fmt.Sprintf("♻️ Задача «%s» выполнена и открыта заново.", html.EscapeString(task.Title))
		if task.Deadline != nil {
			text += fmt.Sprintf("\n⏰ Следующий дедлайн: %s", task.Deadline.UTC().Format("2006-01-02 15:04"))
		}
		return text
	}
	return fmt.Sprintf("✅ Задача «%s» выполнена партнёром.", html.EscapeString(task.Title))
}

func validateRecurrence(rule string) error {
	switch rule {
	case model.RecurNone, model.RecurDaily, model.RecurWeekly, model.RecurMonthly:
		return nil
	default:
		return fmt.Errorf("%w: unknown recurrence %q", ErrValidation, rule)
	}
}

// shiftDeadline advances a deadline by one recurrence period. Months
// shift by a flat 30 days, not by calendar month.
func shiftDeadline(deadline time.Time, rule string) time.Time {
	switch rule {
	case model.RecurDaily:
		return deadline.AddDate(0, 0, 1)
	case model.RecurWeekly:
		return deadline.AddDate(0, 0, 7)
	case model.RecurMonthly:
		return deadline.AddDate(0, 0, 30)
	default:
		return deadline
	}
}
