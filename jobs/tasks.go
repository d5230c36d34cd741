package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tallyard/tallyard/internal/ledger/reports"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	TaskPRApproved      = "notify:pr_approved"
	TaskPOCreated       = "notify:po_created"
	TaskReceiptRecorded = "notify:receipt_recorded"
	TaskInvoicePaid     = "notify:invoice_paid"
	TaskJournalPosted   = "notify:journal_posted"
	TaskReportWarmup    = "reports:warm_trial_balance"
)

// NotificationPayload carries the document identity a notification task
// needs. Meta holds task-specific extras.
type NotificationPayload struct {
	OrgID  int64             `json:"org_id"`
	Number string            `json:"number"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// ReportWarmupPayload names the org whose trial balance should be rebuilt.
type ReportWarmupPayload struct {
	OrgID int64 `json:"org_id"`
}

// NewNotificationTask constructs an Asynq task of the given type.
func NewNotificationTask(taskType string, payload NotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// NewReportWarmupTask constructs a trial balance warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

// NotificationHandler logs delivered notifications. Outbound channels
// (email, chat webhooks) plug in behind this handler.
func NotificationHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload NotificationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("notification delivered",
			slog.String("task", t.Type()),
			slog.Int64("org", payload.OrgID),
			slog.String("number", payload.Number))
		return nil
	}
}

// TrialBalanceWarmer rebuilds the cached trial balance for one org.
type TrialBalanceWarmer interface {
	TrialBalance(ctx context.Context, orgID int64) (reports.TrialBalance, error)
}

// ReportWarmupHandler refreshes the trial balance cache so the first
// dashboard read after the nightly batch does not pay the rebuild cost.
func ReportWarmupHandler(warmer TrialBalanceWarmer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReportWarmupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if _, err := warmer.TrialBalance(ctx, payload.OrgID); err != nil {
			logger.Warn("report warmup", slog.Int64("org", payload.OrgID), slog.Any("error", err))
			return err
		}
		return nil
	}
}
