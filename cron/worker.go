package cron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"appointa/config"
	"appointa/services/reservation"
	"appointa/services/tasks"
	"appointa/utils"
)

// Notifier delivers the reminder to the client. Message transport is an
// external collaborator; the default implementation only logs.
type Notifier interface {
	SendReminder(ctx context.Context, payload tasks.ReminderPayload) error
}

// LogNotifier is the fallback when no transport is wired.
type LogNotifier struct{}

func (LogNotifier) SendReminder(ctx context.Context, p tasks.ReminderPayload) error {
	utils.GetLogger().Info("Reminder due",
		zap.String("consultationId", p.ConsultationID),
		zap.String("scheduledAt", p.ScheduledAt),
		zap.String("clientPhone", p.ClientPhone))
	return nil
}

// InitReminderWorker runs the async worker in background.
func InitReminderWorker(notifier Notifier) {
	if notifier == nil {
		notifier = LogNotifier{}
	}

	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReminder, handleReminderTask(notifier))

	go func() {
		logger := utils.GetLogger().Sugar()
		logger.Info("Starting reminder worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Errorf("Reminder worker attempt %d/%d failed: %v", attempts, maxAttempts, err)
				if attempts == maxAttempts {
					logger.Fatal("Reminder worker could not start, giving up")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

func handleReminderTask(notifier Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p tasks.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			utils.GetLogger().Sugar().Errorf("Invalid reminder payload: %v", err)
			return err
		}
		if err := notifier.SendReminder(ctx, p); err != nil {
			utils.GetLogger().Sugar().Warnf("Reminder delivery failed for %s: %v", p.ConsultationID, err)
			return err
		}
		return nil
	}
}

// StartExpirySweep runs the per-minute sweep that moves overdue holds to
// expired. Cleanup only: confirm re-checks expiry on its own.
func StartExpirySweep(svc reservation.Service) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := svc.CancelExpired(ctx); err != nil {
			utils.GetLogger().Sugar().Warnf("Expiry sweep failed: %v", err)
		}
	})
	if err != nil {
		utils.GetLogger().Sugar().Fatalf("Failed to schedule expiry sweep: %v", err)
	}
	c.Start()
	return c
}
