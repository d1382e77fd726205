package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/portal-mailer/internal/pkg/logger"
	"github.com/ignite/portal-mailer/internal/template"
	"github.com/ignite/portal-mailer/internal/transport"
)

// Renderer is the template port the dispatcher renders through.
type Renderer interface {
	Render(ctx context.Context, templateID uuid.UUID, vars map[string]string) (*template.Rendered, error)
}

// DispatcherConfig holds dispatch tuning.
type DispatcherConfig struct {
	FromEmail   string
	FromName    string
	BulkWorkers int           // max in-flight sends during a bulk dispatch
	SendTimeout time.Duration // per-send transport timeout
}

// DefaultDispatcherConfig returns the dispatch defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BulkWorkers: 16,
		SendTimeout: 30 * time.Second,
	}
}

// Dispatcher turns send requests into rendered messages, transport calls,
// and delivery log rows. All collaborators are injected at construction.
type Dispatcher struct {
	renderer Renderer
	mailer   transport.Mailer
	store    LogStore
	tracker  *Tracker
	cfg      DispatcherConfig
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(renderer Renderer, mailer transport.Mailer, store LogStore, tracker *Tracker, cfg DispatcherConfig) *Dispatcher {
	if cfg.BulkWorkers <= 0 {
		cfg.BulkWorkers = 16
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{
		renderer: renderer,
		mailer:   mailer,
		store:    store,
		tracker:  tracker,
		cfg:      cfg,
	}
}

// sendJob carries everything one send needs. Campaign fields are zero for
// single sends.
type sendJob struct {
	templateID   *uuid.UUID
	campaignID   *uuid.UUID
	campaignName string
	recipient    Recipient
	subject      string // used when templateID is nil (custom send)
	body         string
}

// SendSingle renders the template for one recipient and dispatches it.
// Render and transport failures are recorded on the returned row, not
// raised: the delivery log is the source of truth for outcomes.
func (d *Dispatcher) SendSingle(ctx context.Context, templateID uuid.UUID, recipientEmail string, vars map[string]string) (*Log, error) {
	return d.send(ctx, &sendJob{
		templateID: &templateID,
		recipient:  Recipient{Email: recipientEmail, Variables: vars},
	})
}

// SendCustom dispatches an ad hoc message with no template reference.
func (d *Dispatcher) SendCustom(ctx context.Context, recipientEmail, subject, body string) (*Log, error) {
	return d.send(ctx, &sendJob{
		recipient: Recipient{Email: recipientEmail},
		subject:   subject,
		body:      body,
	})
}

// SendBulk dispatches one template to many recipients under a fresh campaign
// id, with at most cfg.BulkWorkers sends in flight. Each recipient is handled
// independently; one failure never aborts the rest. It returns once every
// recipient has reached a terminal per-send outcome.
func (d *Dispatcher) SendBulk(ctx context.Context, templateID uuid.UUID, recipients []Recipient, campaignName string) (*BulkResult, error) {
	campaignID := uuid.New()
	result := &BulkResult{CampaignID: campaignID}
	if len(recipients) == 0 {
		return result, nil
	}

	workers := d.cfg.BulkWorkers
	if workers > len(recipients) {
		workers = len(recipients)
	}

	var success, failure int64
	jobs := make(chan Recipient)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				entry, err := d.send(ctx, &sendJob{
					templateID:   &templateID,
					campaignID:   &campaignID,
					campaignName: campaignName,
					recipient:    r,
				})
				if err != nil {
					atomic.AddInt64(&failure, 1)
					logger.Error("bulk send failed before dispatch",
						"campaign_id", campaignID.String(), "recipient", r.Email, "error", err.Error())
					continue
				}
				if entry.Status == StatusSent {
					atomic.AddInt64(&success, 1)
				} else {
					atomic.AddInt64(&failure, 1)
				}
			}
		}()
	}

	for _, r := range recipients {
		jobs <- r
	}
	close(jobs)
	wg.Wait()

	result.SuccessCount = int(atomic.LoadInt64(&success))
	result.FailureCount = int(atomic.LoadInt64(&failure))

	logger.Info("bulk send complete",
		"campaign_id", campaignID.String(), "campaign_name", campaignName,
		"recipients", len(recipients), "success", result.SuccessCount, "failure", result.FailureCount)
	return result, nil
}

// send runs the full per-recipient path: render, insert the pending row,
// call transport, advance to sent or failed. The returned Log reflects the
// terminal per-send state.
func (d *Dispatcher) send(ctx context.Context, job *sendJob) (*Log, error) {
	now := time.Now()
	entry := &Log{
		ID:              uuid.New(),
		TemplateID:      job.templateID,
		CampaignID:      job.campaignID,
		CampaignName:    job.campaignName,
		RecipientEmail:  strings.ToLower(strings.TrimSpace(job.recipient.Email)),
		RecipientName:   job.recipient.Name,
		RecipientUserID: job.recipient.UserID,
		Status:          StatusPending,
		CreatedAt:       now,
	}

	subject, body := job.subject, job.body
	var renderErr error
	if job.templateID != nil {
		rendered, err := d.renderer.Render(ctx, *job.templateID, job.recipient.Variables)
		if err != nil {
			renderErr = err
		} else {
			subject, body = rendered.Subject, rendered.Body
			entry.TemplateName = rendered.TemplateName
		}
	}
	entry.Subject = subject
	entry.BodyRef = bodyRef(body)

	if err := d.store.Insert(ctx, entry); err != nil {
		return nil, err
	}

	// A render failure is terminal for this attempt: record it and skip the
	// transport entirely.
	if renderErr != nil {
		return d.fail(ctx, entry, renderErr.Error())
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	res, err := d.mailer.Send(sendCtx, &transport.Message{
		To:        entry.RecipientEmail,
		ToName:    entry.RecipientName,
		FromEmail: d.cfg.FromEmail,
		FromName:  d.cfg.FromName,
		Subject:   subject,
		HTMLBody:  body,
		Metadata:  d.metadata(entry),
	})
	switch {
	case err != nil:
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			reason = "transport timeout"
		}
		return d.fail(ctx, entry, reason)
	case !res.Accepted:
		return d.fail(ctx, entry, res.Reason)
	}

	if err := d.tracker.MarkSent(ctx, entry.ID, time.Now()); err != nil {
		return nil, err
	}
	sentAt := time.Now()
	entry.Status = StatusSent
	entry.SentAt = &sentAt

	logger.Info("send accepted",
		"log_id", entry.ID.String(), "recipient", entry.RecipientEmail, "message_id", res.MessageID)
	return entry, nil
}

func (d *Dispatcher) fail(ctx context.Context, entry *Log, reason string) (*Log, error) {
	if err := d.tracker.MarkFailed(ctx, entry.ID, reason, time.Now()); err != nil {
		return nil, err
	}
	entry.Status = StatusFailed
	entry.FailureReason = reason

	logger.Warn("send failed",
		"log_id", entry.ID.String(), "recipient", entry.RecipientEmail, "reason", reason)
	return entry, nil
}

func (d *Dispatcher) metadata(entry *Log) map[string]string {
	md := map[string]string{"log_id": entry.ID.String()}
	if entry.CampaignID != nil {
		md["campaign_id"] = entry.CampaignID.String()
	}
	if entry.TemplateID != nil {
		md["template_id"] = entry.TemplateID.String()
	}
	return md
}

// bodyRef is the opaque reference stored in place of the rendered body.
func bodyRef(body string) string {
	if body == "" {
		return ""
	}
	h := sha256.Sum256([]byte(body))
	return hex.EncodeToString(h[:])
}
