package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"time"

	"gorm.io/gorm"

	"family-tasks/internal/model"
	"family-tasks/internal/repository"
)

// reminderHorizon is how far ahead of a deadline the sweep starts
// reminding.
const reminderHorizon = 30 * time.Minute

// ReminderService runs the periodic deadline sweep and the morning
// summary. The sweep's contract is "remind at most once per deadline
// crossing": a task is flagged as reminded even when delivery failed,
// and per-task errors never abort the rest of the batch.
type ReminderService struct {
	taskRepo   *repository.TaskRepository
	memberRepo *repository.MemberRepository
	notifier   Notifier
}

func NewReminderService(taskRepo *repository.TaskRepository, memberRepo *repository.MemberRepository, notifier Notifier) *ReminderService {
	return &ReminderService{taskRepo: taskRepo, memberRepo: memberRepo, notifier: notifier}
}

// Sweep scans for pending tasks whose deadline falls at or before
// now+30m and have not been reminded yet, notifies the owner (and the
// partner for common tasks), and commits all reminded flags as one
// batch at the end of the tick.
func (s *ReminderService) Sweep(ctx context.Context, now time.Time) error {
	now = now.UTC()
	horizon := now.Add(reminderHorizon)

	tasks, err := s.taskRepo.DueForReminder(ctx, horizon)
	if err != nil {
		return fmt.Errorf("scan due tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	reminded := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		s.remind(ctx, &task, now)
		// Flagged unconditionally: a failed send is swallowed, not
		// retried by the sweep.
		reminded = append(reminded, task.ID)
	}

	if err := s.taskRepo.MarkReminded(ctx, reminded); err != nil {
		return fmt.Errorf("commit reminded batch: %w", err)
	}

	log.Printf("[info] reminder sweep processed %d task(s)", len(reminded))
	return nil
}

func (s *ReminderService) remind(ctx context.Context, task *model.Task, now time.Time) {
	owner, err := s.memberRepo.FindByID(ctx, task.OwnerID)
	if err != nil {
		// The owner (or the task itself) may have been deleted between
		// the scan and this point; nothing to remind then.
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("find owner %d for task %d: %v", task.OwnerID, task.ID, err)
		}
		return
	}

	expired := task.Deadline.Before(now)
	text := reminderText(task, expired)

	if res := s.notifier.Notify(ctx, owner.TelegramID, text); !res.Delivered {
		log.Printf("remind owner %d about task %d: %v", owner.TelegramID, task.ID, res.Err)
	}

	if task.Visibility != model.VisibilityCommon {
		return
	}
	partner, err := s.memberRepo.FindPartner(ctx, owner)
	if err != nil {
		log.Printf("find partner of member %d: %v", owner.ID, err)
		return
	}
	if partner == nil {
		return
	}
	if res := s.notifier.Notify(ctx, partner.TelegramID, text); !res.Delivered {
		log.Printf("remind partner %d about task %d: %v", partner.TelegramID, task.ID, res.Err)
	}
}

// MorningSummary sends every joined member the number of pending tasks
// on their family list. Members without open tasks are skipped.
func (s *ReminderService) MorningSummary(ctx context.Context, now time.Time) error {
	members, err := s.memberRepo.ListJoined(ctx)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	for _, member := range members {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !member.InFamily() {
			continue
		}
		count, err := s.taskRepo.CountPending(ctx, *member.FamilyCode)
		if err != nil {
			log.Printf("count pending for family %s: %v", *member.FamilyCode, err)
			continue
		}
		if count == 0 {
			continue
		}
		text := fmt.Sprintf("☕ Доброе утро! На сегодня у вашей семьи <b>%d задач</b>.\nЗагляните в Mini App!", count)
		if res := s.notifier.Notify(ctx, member.TelegramID, text); !res.Delivered {
			log.Printf("morning summary to %d: %v", member.TelegramID, res.Err)
		}
	}
	return nil
}

func reminderText(task *model.Task, expired bool) string {
	deadline := task.Deadline.UTC().Format("2006-01-02 15:04")
	if expired {
		return fmt.Sprintf("⚠️ <b>Дедлайн прошёл!</b>\n📌 %s\n⏰ был до %s", html.EscapeString(task.Title), deadline)
	}
	return fmt.Sprintf("⏳ <b>Скоро дедлайн!</b>\n📌 %s\n⏰ до %s", html.EscapeString(task.Title), deadline)
}
