package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"family-tasks/internal/api"
	"family-tasks/internal/bot"
	"family-tasks/internal/config"
	"family-tasks/internal/notify"
	"family-tasks/internal/repository"
	"family-tasks/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Println("[info] no .env file, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	memberRepo := repository.NewMemberRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("bot api: %v", err)
	}
	log.Printf("[info] bot authorized on account %s", botAPI.Self.UserName)

	notifier := notify.NewTelegramNotifier(botAPI)
	taskSvc := service.NewTaskService(taskRepo, memberRepo, notifier)
	reminderSvc := service.NewReminderService(taskRepo, memberRepo, notifier)

	telegramBot := bot.New(botAPI, memberRepo, &cfg)

	scheduler := service.NewSchedulerService(time.UTC)
	if _, err := scheduler.ScheduleInterval(cfg.SweepInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := reminderSvc.Sweep(jobCtx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("reminder sweep: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule sweep: %v", err)
	}
	if _, err := scheduler.ScheduleDaily(cfg.MorningTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := reminderSvc.MorningSummary(jobCtx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("morning summary: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule morning summary: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.SetupRouter(cfg.BotToken, memberRepo, taskSvc),
	}
	go func() {
		log.Printf("[info] mini app API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	log.Println("Family tasks bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
