package delivery

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/portal-mailer/internal/template"
	"github.com/ignite/portal-mailer/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer mimics a welcome template requiring firstName.
type fakeRenderer struct{}

func (fakeRenderer) Render(ctx context.Context, templateID uuid.UUID, vars map[string]string) (*template.Rendered, error) {
	name, ok := vars["firstName"]
	if !ok {
		return nil, &template.MissingVariableError{Name: "firstName"}
	}
	return &template.Rendered{
		TemplateID:   templateID,
		TemplateName: "welcome",
		Subject:      "Welcome, " + name + "!",
		Body:         "<p>Hello " + name + "</p>",
	}, nil
}

// fakeMailer rejects recipients in the reject set and can simulate a slow
// provider that honors context cancellation.
type fakeMailer struct {
	reject     map[string]string // email -> reason
	delay      time.Duration
	calls      int64
	inFlight   int64
	maxInFlight int64
}

func (m *fakeMailer) Send(ctx context.Context, msg *transport.Message) (*transport.Result, error) {
	atomic.AddInt64(&m.calls, 1)
	cur := atomic.AddInt64(&m.inFlight, 1)
	defer atomic.AddInt64(&m.inFlight, -1)
	for {
		max := atomic.LoadInt64(&m.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&m.maxInFlight, max, cur) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if reason, ok := m.reject[msg.To]; ok {
		return &transport.Result{Accepted: false, Reason: reason}, nil
	}
	return &transport.Result{Accepted: true, MessageID: "msg-" + msg.To}, nil
}

func newTestDispatcher(mailer transport.Mailer, store LogStore, cfg DispatcherConfig) *Dispatcher {
	return NewDispatcher(fakeRenderer{}, mailer, store, NewTracker(store), cfg)
}

func TestSendSingleSuccess(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(&fakeMailer{}, store, DefaultDispatcherConfig())

	entry, err := d.SendSingle(context.Background(), uuid.New(), "Ada@Example.edu", map[string]string{"firstName": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, StatusSent, entry.Status)
	assert.Equal(t, "ada@example.edu", entry.RecipientEmail)
	assert.Equal(t, "Welcome, Ada!", entry.Subject)
	assert.Equal(t, "welcome", entry.TemplateName)
	assert.NotNil(t, entry.SentAt)
	assert.NotEmpty(t, entry.BodyRef)

	row, err := store.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, row.Status)
}

func TestSendSingleRenderFailureSkipsTransport(t *testing.T) {
	store := newMemStore()
	mailer := &fakeMailer{}
	d := newTestDispatcher(mailer, store, DefaultDispatcherConfig())

	entry, err := d.SendSingle(context.Background(), uuid.New(), "ada@example.edu", map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, entry.Status)
	assert.Contains(t, entry.FailureReason, "firstName")
	assert.EqualValues(t, 0, atomic.LoadInt64(&mailer.calls), "render failure must not reach the transport")

	row, err := store.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, row.Status)
}

func TestSendSingleTransportRejection(t *testing.T) {
	store := newMemStore()
	mailer := &fakeMailer{reject: map[string]string{"ada@example.edu": "mailbox does not exist"}}
	d := newTestDispatcher(mailer, store, DefaultDispatcherConfig())

	entry, err := d.SendSingle(context.Background(), uuid.New(), "ada@example.edu", map[string]string{"firstName": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, "mailbox does not exist", entry.FailureReason)
}

func TestSendSingleTransportTimeout(t *testing.T) {
	store := newMemStore()
	mailer := &fakeMailer{delay: 200 * time.Millisecond}
	cfg := DefaultDispatcherConfig()
	cfg.SendTimeout = 20 * time.Millisecond
	d := newTestDispatcher(mailer, store, cfg)

	entry, err := d.SendSingle(context.Background(), uuid.New(), "ada@example.edu", map[string]string{"firstName": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, "transport timeout", entry.FailureReason)
}

func TestSendCustom(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(&fakeMailer{}, store, DefaultDispatcherConfig())

	entry, err := d.SendCustom(context.Background(), "ada@example.edu", "Maintenance window", "<p>Tonight</p>")
	require.NoError(t, err)

	assert.Equal(t, StatusSent, entry.Status)
	assert.Nil(t, entry.TemplateID)
	assert.Nil(t, entry.CampaignID)
	assert.Equal(t, "Maintenance window", entry.Subject)
}

func TestSendBulkPartialFailure(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(&fakeMailer{}, store, DefaultDispatcherConfig())

	recipients := []Recipient{
		{Email: "a@x.com", Variables: map[string]string{"firstName": "A"}},
		{Email: "bad-template-recipient@x.com", Variables: map[string]string{}},
	}

	res, err := d.SendBulk(context.Background(), uuid.New(), recipients, "Launch")
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	assert.Equal(t, 2, store.count())

	var failed int
	for _, row := range store.all() {
		require.NotNil(t, row.CampaignID)
		assert.Equal(t, res.CampaignID, *row.CampaignID)
		assert.Equal(t, "Launch", row.CampaignName)
		if row.Status == StatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestSendBulkProducesOneRowPerRecipient(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(&fakeMailer{}, store, DefaultDispatcherConfig())

	var recipients []Recipient
	for i := 0; i < 40; i++ {
		recipients = append(recipients, Recipient{
			Email:     fmt.Sprintf("user%d@example.edu", i),
			Variables: map[string]string{"firstName": fmt.Sprintf("User%d", i)},
		})
	}

	res, err := d.SendBulk(context.Background(), uuid.New(), recipients, "Newsletter")
	require.NoError(t, err)

	assert.Equal(t, 40, res.SuccessCount+res.FailureCount)
	assert.Equal(t, 40, store.count())
}

func TestSendBulkRespectsWorkerBound(t *testing.T) {
	store := newMemStore()
	mailer := &fakeMailer{delay: 10 * time.Millisecond}
	cfg := DefaultDispatcherConfig()
	cfg.BulkWorkers = 4
	d := newTestDispatcher(mailer, store, cfg)

	var recipients []Recipient
	for i := 0; i < 32; i++ {
		recipients = append(recipients, Recipient{
			Email:     fmt.Sprintf("user%d@example.edu", i),
			Variables: map[string]string{"firstName": "U"},
		})
	}

	res, err := d.SendBulk(context.Background(), uuid.New(), recipients, "Bounded")
	require.NoError(t, err)

	assert.Equal(t, 32, res.SuccessCount)
	assert.LessOrEqual(t, atomic.LoadInt64(&mailer.maxInFlight), int64(4))
}

func TestSendBulkEmpty(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(&fakeMailer{}, store, DefaultDispatcherConfig())

	res, err := d.SendBulk(context.Background(), uuid.New(), nil, "Empty")
	require.NoError(t, err)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 0, res.FailureCount)
	assert.NotEqual(t, uuid.Nil, res.CampaignID)
}
