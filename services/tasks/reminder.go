package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"appointa/config"
	"appointa/models"
	"appointa/utils"
)

const TypeSendReminder = "reminder:send"

// ReminderLeadTime is how long before the appointment the reminder fires.
const ReminderLeadTime = 24 * time.Hour

// ReminderPayload is the queued task body.
type ReminderPayload struct {
	ConsultationID string `json:"consultationId"`
	ClientID       string `json:"clientId,omitempty"`
	ClientPhone    string `json:"clientPhone,omitempty"`
	ClientEmail    string `json:"clientEmail,omitempty"`
	ScheduledAt    string `json:"scheduledAt"` // RFC3339
	MeetLink       string `json:"meetLink,omitempty"`
}

// NewReminderTask builds the asynq task scheduled at fireAt.
func NewReminderTask(payload ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReminder, b)
	opts := []asynq.Option{asynq.ProcessAt(fireAt)}

	return task, opts, nil
}

// AsynqEnqueuer enqueues reminder tasks on the shared redis broker.
type AsynqEnqueuer struct {
	client *asynq.Client
}

func NewAsynqEnqueuer() *AsynqEnqueuer {
	return &AsynqEnqueuer{client: asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})}
}

// EnqueueReminder schedules the pre-appointment reminder. Appointments
// starting inside the lead time get no reminder.
func (e *AsynqEnqueuer) EnqueueReminder(ctx context.Context, c *models.Consultation) error {
	fireAt := c.ScheduledAt.Add(-ReminderLeadTime)
	if !fireAt.After(time.Now()) {
		utils.GetLogger().Sugar().Debugf("Skipping reminder for booking %s, start is inside the lead time", c.ID)
		return nil
	}

	payload := ReminderPayload{
		ConsultationID: c.ID,
		ClientID:       c.ClientID,
		ClientPhone:    c.ClientPhone,
		ClientEmail:    c.ClientEmail,
		ScheduledAt:    c.ScheduledAt.Format(time.RFC3339),
		MeetLink:       c.MeetLink,
	}
	task, opts, err := NewReminderTask(payload, fireAt)
	if err != nil {
		return fmt.Errorf("failed to build reminder task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue reminder: %w", err)
	}
	return nil
}
