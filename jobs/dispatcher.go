package jobs

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/tallyard/tallyard/internal/billing"
	"github.com/tallyard/tallyard/internal/ledger/journals"
	"github.com/tallyard/tallyard/internal/ledger/reports"
	"github.com/tallyard/tallyard/internal/procurement"
)

// Dispatcher bridges domain events to queued notification tasks. Services
// call it after their transaction commits; enqueue failures are logged and
// never propagate back into the request path.
type Dispatcher struct {
	client  *Client
	reports *reports.Service
	logger  *slog.Logger
}

// NewDispatcher constructs a Dispatcher. reports may be nil when cache
// invalidation is not wanted.
func NewDispatcher(client *Client, reportSvc *reports.Service, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, reports: reportSvc, logger: logger}
}

var _ procurement.EventsPort = (*Dispatcher)(nil)
var _ billing.EventsPort = (*Dispatcher)(nil)
var _ journals.EventsPort = (*Dispatcher)(nil)

// PRApproved queues the approval notification.
func (d *Dispatcher) PRApproved(ctx context.Context, evt procurement.PRApprovedEvent) error {
	d.enqueue(ctx, TaskPRApproved, NotificationPayload{
		OrgID:  evt.OrgID,
		Number: evt.Number,
		Meta:   map[string]string{"title": evt.Title, "approved_by": formatID(evt.ApprovedBy)},
	})
	return nil
}

// POCreated queues the order notification.
func (d *Dispatcher) POCreated(ctx context.Context, evt procurement.POCreatedEvent) error {
	meta := map[string]string{"vendor": formatID(evt.VendorID)}
	if evt.PRNumber != "" {
		meta["from_pr"] = evt.PRNumber
	}
	d.enqueue(ctx, TaskPOCreated, NotificationPayload{OrgID: evt.OrgID, Number: evt.Number, Meta: meta})
	return nil
}

// ReceiptRecorded queues the receipt notification.
func (d *Dispatcher) ReceiptRecorded(ctx context.Context, evt procurement.ReceiptRecordedEvent) error {
	d.enqueue(ctx, TaskReceiptRecorded, NotificationPayload{
		OrgID:  evt.OrgID,
		Number: evt.Number,
		Meta:   map[string]string{"type": string(evt.Type), "status": string(evt.Status)},
	})
	return nil
}

// InvoicePaid queues the payment notification and drops the cached trial
// balance, which the payment just invalidated.
func (d *Dispatcher) InvoicePaid(ctx context.Context, evt billing.InvoicePaidEvent) error {
	if d.reports != nil {
		d.reports.Invalidate(ctx, evt.OrgID)
	}
	d.enqueue(ctx, TaskInvoicePaid, NotificationPayload{
		OrgID:  evt.OrgID,
		Number: evt.Number,
		Meta:   map[string]string{"vendor": formatID(evt.VendorID)},
	})
	return nil
}

// JournalPosted queues the journal notification and drops the cached trial
// balance.
func (d *Dispatcher) JournalPosted(ctx context.Context, entry journals.JournalEntry) error {
	if d.reports != nil {
		d.reports.Invalidate(ctx, entry.OrgID)
	}
	d.enqueue(ctx, TaskJournalPosted, NotificationPayload{OrgID: entry.OrgID, Number: entry.Number})
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, taskType string, payload NotificationPayload) {
	if d.client == nil {
		return
	}
	task, err := NewNotificationTask(taskType, payload)
	if err != nil {
		d.logger.Warn("build task", slog.String("task", taskType), slog.Any("error", err))
		return
	}
	if _, err := d.client.Enqueue(ctx, task); err != nil {
		d.logger.Warn("enqueue task", slog.String("task", taskType), slog.Any("error", err))
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
