package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tazhate/medremind/config"
	"github.com/tazhate/medremind/internal/alarm"
	"github.com/tazhate/medremind/internal/clients/caldav"
	"github.com/tazhate/medremind/internal/clients/medapi"
	"github.com/tazhate/medremind/internal/connectivity"
	"github.com/tazhate/medremind/internal/domain"
	"github.com/tazhate/medremind/internal/notify"
	"github.com/tazhate/medremind/internal/reconcile"
	"github.com/tazhate/medremind/internal/service"
	"github.com/tazhate/medremind/internal/storage"
	"github.com/tazhate/medremind/internal/syncqueue"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	sender, err := notify.NewTelegramSender(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to init telegram sender: %v", err)
	}

	scheduler := notify.NewCronScheduler(cfg.Timezone, sender, cfg.PatientChatID)
	registry := alarm.NewRegistry(store, scheduler, cfg.Timezone)

	api := medapi.NewClient(cfg.APIBaseURL, cfg.APIToken)
	queue := syncqueue.New(store, api)
	monitor := connectivity.New(cfg.ProbeEndpoints, cfg.ProbeTimeout)
	queue.SetOnline(monitor.Online)
	queue.SetOnLoss(func(item domain.SyncItem) {
		text := "⚠️ Не удалось сохранить часть изменений на сервере. Проверьте данные позже."
		if err := sender.SendMessage(cfg.PatientChatID, text); err != nil {
			log.Printf("Failed to report sync loss: %v", err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.SetOnOnline(func() {
		if err := queue.Drain(ctx); err != nil {
			log.Printf("Drain after reconnect failed: %v", err)
		}
	})

	task := reconcile.NewTask(store, registry)

	scheduler.Start()

	// Rebuild scheduler state lost in the restart before anything else.
	if outcome, err := task.Run(); err != nil {
		log.Printf("Startup reconciliation failed: %v", err)
	} else {
		log.Printf("Startup reconciliation: %s", outcome)
	}

	go monitor.Start(ctx, cfg.PollInterval)
	go task.Start(ctx, cfg.ReconcileInterval)

	if cfg.CalDAVURL != "" {
		client := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
		calendarSvc := service.NewCalendarService(store, client, registry, cfg.Timezone)
		calendarSvc.SetCalendarPath(cfg.CalDAVCalendarID)
		if calendarSvc.IsConfigured() {
			go calendarSvc.Start(ctx, cfg.CalSyncInterval)
		}
	}

	log.Println("MedRemind started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	scheduler.Stop()

	log.Println("MedRemind stopped")
}
