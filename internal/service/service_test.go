package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"family-tasks/internal/model"
	"family-tasks/internal/repository"
)

var testDBCounter atomic.Int64

// fakeNotifier records every Notify call; with fail set it simulates a
// recipient who blocked the bot.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

type sentMessage struct {
	chatID int64
	text   string
}

func (f *fakeNotifier) Notify(_ context.Context, chatID int64, text string) DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	if f.fail {
		return DeliveryResult{Err: fmt.Errorf("chat %d unreachable", chatID)}
	}
	return DeliveryResult{Delivered: true}
}

func (f *fakeNotifier) sentTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, msg := range f.sent {
		if msg.chatID == chatID {
			texts = append(texts, msg.text)
		}
	}
	return texts
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testEnv struct {
	taskSvc     *TaskService
	reminderSvc *ReminderService
	taskRepo    *repository.TaskRepository
	memberRepo  *repository.MemberRepository
	notifier    *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := repository.NewDB(dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// A single connection keeps the shared in-memory db alive for the
	// whole test.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	taskRepo := repository.NewTaskRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	notifier := &fakeNotifier{}

	return &testEnv{
		taskSvc:     NewTaskService(taskRepo, memberRepo, notifier),
		reminderSvc: NewReminderService(taskRepo, memberRepo, notifier),
		taskRepo:    taskRepo,
		memberRepo:  memberRepo,
		notifier:    notifier,
	}
}

const testFamilyCode = "A3F20C"

// newCouple registers a husband and a wife sharing one family.
func (e *testEnv) newCouple(t *testing.T) (*model.Member, *model.Member) {
	t.Helper()
	husband := e.newMember(t, 100, "hus", model.RoleHusband, testFamilyCode)
	wife := e.newMember(t, 200, "wif", model.RoleWife, testFamilyCode)
	return husband, wife
}

func (e *testEnv) newMember(t *testing.T, telegramID int64, username string, role model.Role, familyCode string) *model.Member {
	t.Helper()
	ctx := context.Background()
	member, err := e.memberRepo.UpsertFromTelegram(ctx, telegramID, username)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if role != "" {
		if err := e.memberRepo.SetRole(ctx, member.ID, role); err != nil {
			t.Fatalf("set role: %v", err)
		}
	}
	if familyCode != "" {
		if err := e.memberRepo.SetFamilyCode(ctx, member.ID, familyCode); err != nil {
			t.Fatalf("set family code: %v", err)
		}
	}
	member, err = e.memberRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		t.Fatalf("reload member: %v", err)
	}
	return member
}

func (e *testEnv) reloadTask(t *testing.T, taskID uint) *model.Task {
	t.Helper()
	task, err := e.taskRepo.FindByID(context.Background(), taskID)
	if err != nil {
		t.Fatalf("reload task %d: %v", taskID, err)
	}
	return task
}

func containsText(texts []string, fragment string) bool {
	for _, text := range texts {
		if strings.Contains(text, fragment) {
			return true
		}
	}
	return false
}
