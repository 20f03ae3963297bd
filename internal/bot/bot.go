// Package bot implements the Telegram front end: registration, role
// selection and family pairing. The task list itself lives in the
// Mini App.
package bot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"family-tasks/internal/config"
	"family-tasks/internal/model"
	"family-tasks/internal/repository"
)

const (
	cbRoleHusband  = "role_husband"
	cbRoleWife     = "role_wife"
	cbFamilyCreate = "family_create"
	cbFamilyJoin   = "family_join"
)

// Bot aggregates the Telegram API with the member layer.
type Bot struct {
	api          *tgbotapi.BotAPI
	memberRepo   *repository.MemberRepository
	config       *config.Config
	awaitingCode map[int64]bool
	mu           sync.Mutex
}

func New(api *tgbotapi.BotAPI, memberRepo *repository.MemberRepository, cfg *config.Config) *Bot {
	return &Bot{
		api:          api,
		memberRepo:   memberRepo,
		config:       cfg,
		awaitingCode: make(map[int64]bool),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.clearAwaitingCode(msg.From.ID)
		log.Printf("[info] command from %d: /%s", msg.From.ID, msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if b.isAwaitingCode(msg.From.ID) {
		return b.handleFamilyCode(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я не понял сообщение. Набери /start для настройки или /tasks, чтобы открыть список дел.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "tasks":
		return b.handleTasks(msg)
	case "reset":
		return b.handleReset(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

// handleStart walks the member through setup: role first, then family.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	member, err := b.ensureMember(ctx, msg.From)
	if err != nil {
		return err
	}

	switch {
	case !member.Role.Valid():
		return b.sendWithReplyMarkup(msg.Chat.ID, "Привет! Выберите вашу роль:", roleKeyboard())
	case !member.InFamily():
		return b.sendWithReplyMarkup(msg.Chat.ID, "Роль выбрана. Теперь создайте семью или введите код партнёра:", familyKeyboard())
	default:
		return b.sendText(msg.Chat.ID, "✅ Вы уже в семье и готовы к работе!")
	}
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /start — выбрать роль и связать аккаунт с партнёром\n" +
		"• /tasks — открыть семейный список дел\n" +
		"• /reset — удалить профиль и свои задачи\n" +
		"• /help — это сообщение"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleTasks(msg *tgbotapi.Message) error {
	if b.config.WebAppURL == "" {
		return b.sendText(msg.Chat.ID, "Mini App ещё не настроен. Задай WEBAPP_URL в конфигурации.")
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📋 Открыть список дел", b.config.WebAppURL),
		),
	)
	return b.sendWithReplyMarkup(msg.Chat.ID, "Вот ваши задачи:", keyboard)
}

func (b *Bot) handleReset(ctx context.Context, msg *tgbotapi.Message) error {
	member, err := b.memberRepo.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Вы и так не зарегистрированы.")
		}
		return err
	}

	if err := b.memberRepo.Delete(ctx, member); err != nil {
		return b.sendText(msg.Chat.ID, "Не удалось удалить профиль, попробуйте позже.")
	}

	log.Printf("[info] member %d reset profile", member.TelegramID)
	return b.sendText(msg.Chat.ID, "🗑 Ваш профиль и задачи полностью удалены. Нажмите /start для новой регистрации.")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	switch cb.Data {
	case cbRoleHusband:
		return b.setRole(ctx, cb, model.RoleHusband)
	case cbRoleWife:
		return b.setRole(ctx, cb, model.RoleWife)
	case cbFamilyCreate:
		return b.createFamily(ctx, cb)
	case cbFamilyJoin:
		b.setAwaitingCode(cb.From.ID)
		return b.sendText(cb.Message.Chat.ID, "Введите 6-значный код, который вам прислал партнёр:")
	default:
		return nil
	}
}

func (b *Bot) setRole(ctx context.Context, cb *tgbotapi.CallbackQuery, role model.Role) error {
	member, err := b.ensureMember(ctx, cb.From)
	if err != nil {
		return err
	}
	if err := b.memberRepo.SetRole(ctx, member.ID, role); err != nil {
		return err
	}
	log.Printf("[info] member %d chose role %s", member.TelegramID, role)
	return b.sendWithReplyMarkup(cb.Message.Chat.ID, "Роль сохранена! Теперь создайте семью или введите код.", familyKeyboard())
}

func (b *Bot) createFamily(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	member, err := b.ensureMember(ctx, cb.From)
	if err != nil {
		return err
	}

	code, err := newFamilyCode()
	if err != nil {
		return fmt.Errorf("generate family code: %w", err)
	}

	if err := b.memberRepo.SetFamilyCode(ctx, member.ID, code); err != nil {
		return err
	}

	log.Printf("[info] member %d created family %s", member.TelegramID, code)
	return b.sendText(cb.Message.Chat.ID,
		fmt.Sprintf("Ваша семья создана!\nПередайте этот код партнёру: <code>%s</code>", code))
}

// handleFamilyCode links the member to an existing family. A family
// holds at most two members; the joiner gets the role opposite to the
// creator's when theirs would collide.
func (b *Bot) handleFamilyCode(ctx context.Context, msg *tgbotapi.Message) error {
	code := strings.ToUpper(strings.TrimSpace(msg.Text))

	member, err := b.ensureMember(ctx, msg.From)
	if err != nil {
		return err
	}

	members, err := b.memberRepo.ListByFamily(ctx, code)
	if err != nil {
		return err
	}

	if len(members) == 0 {
		return b.sendText(msg.Chat.ID, "❌ Код не найден. Попробуйте ещё раз или создайте свою семью.")
	}

	var partner *model.Member
	for i := range members {
		if members[i].TelegramID == member.TelegramID {
			return b.sendText(msg.Chat.ID, "🤔 Это ваш собственный код...")
		}
		partner = &members[i]
	}

	if len(members) >= 2 {
		b.clearAwaitingCode(msg.From.ID)
		return b.sendText(msg.Chat.ID, "❌ В этой семье уже два человека.")
	}

	if !member.Role.Valid() || member.Role == partner.Role {
		assigned := partner.Role.Other()
		if err := b.memberRepo.SetRole(ctx, member.ID, assigned); err != nil {
			return err
		}
		log.Printf("[info] member %d assigned role %s on join", member.TelegramID, assigned)
	}

	if err := b.memberRepo.SetFamilyCode(ctx, member.ID, code); err != nil {
		return err
	}
	b.clearAwaitingCode(msg.From.ID)

	log.Printf("[info] member %d joined family %s", member.TelegramID, code)
	if err := b.sendText(msg.Chat.ID, "🎉 Ура! Вы успешно связали аккаунты!"); err != nil {
		return err
	}

	// Partner may have blocked the bot; a failed ping is not an error.
	notice := fmt.Sprintf("🔔 Партнёр @%s присоединился к вашей семье!", html.EscapeString(msg.From.UserName))
	if err := b.sendText(partner.TelegramID, notice); err != nil {
		log.Printf("notify partner %d: %v", partner.TelegramID, err)
	}
	return nil
}

func (b *Bot) ensureMember(ctx context.Context, from *tgbotapi.User) (*model.Member, error) {
	return b.memberRepo.UpsertFromTelegram(ctx, from.ID, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setAwaitingCode(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.awaitingCode[userID] = true
}

func (b *Bot) isAwaitingCode(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingCode[userID]
}

func (b *Bot) clearAwaitingCode(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.awaitingCode, userID)
}

func roleKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🙋‍♂️ Я Муж", cbRoleHusband),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🙋‍♀️ Я Жена", cbRoleWife),
		),
	)
}

func familyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Создать семью", cbFamilyCreate),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔑 Ввести код партнёра", cbFamilyJoin),
		),
	)
}

// newFamilyCode returns a short random pairing code, e.g. "A3F20C".
func newFamilyCode() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
