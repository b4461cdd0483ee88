package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumamail/beacon/internal/mail"
)

// ErrNotConfigured is returned by Dispatch when no mail route exists. It is
// a state the caller may retry out of later, not a delivery failure.
var ErrNotConfigured = errors.New("digest: mail recipient not configured")

// generatedAtLayout is the human-readable timestamp printed in reports.
const generatedAtLayout = "Mon, 02 Jan 2006 15:04:05 MST"

// Log is the slice of the event log the dispatcher needs. Dispatch itself
// never clears the log; Clear is here for callers that compose
// send-then-clear, like the scheduler.
type Log interface {
	Read() []json.RawMessage
	Backup() (string, error)
	Clear() error
}

// Config addresses outbound digests. Preview caps the recent-activity rows
// in a report; zero means the package default.
type Config struct {
	From          string
	To            []string
	SubjectPrefix string
	Preview       int
}

// Result reports the outcome of one dispatch. DispatchID is set whenever a
// report was composed, delivered or not, and correlates mail, logs and API
// responses.
type Result struct {
	Delivered   bool   `json:"delivered"`
	RecordCount int    `json:"record_count"`
	DispatchID  string `json:"dispatch_id,omitempty"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the time source for report timestamps. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithID sets the dispatch ID generator. Default: random UUIDs.
func WithID(newID func() string) Option {
	return func(d *Dispatcher) { d.newID = newID }
}

// Dispatcher summarizes the event log into a mail report.
type Dispatcher struct {
	log    Log
	mailer mail.Mailer
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewDispatcher wires a dispatcher to its log and mail transport. A nil
// mailer is allowed and makes every Dispatch return ErrNotConfigured.
func NewDispatcher(log Log, mailer mail.Mailer, cfg Config, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:    log,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch reads the whole log, renders a digest and hands it to the mail
// transport, then backs up the log file for audit. The log itself is left
// untouched either way: clearing after a send is the caller's decision, so
// a skipped or failed clear never loses data silently.
//
// An empty log reports Delivered without sending: there is nothing to say.
// A missing mail route returns ErrNotConfigured; a transport failure is
// returned as is, and the caller may retry without data loss.
func (d *Dispatcher) Dispatch(ctx context.Context, requester, reason string) (Result, error) {
	if d.mailer == nil || d.cfg.From == "" || len(d.cfg.To) == 0 {
		return Result{}, ErrNotConfigured
	}

	records := d.log.Read()
	if len(records) == 0 {
		d.logger.Info("digest suppressed, log empty",
			zap.String("requester", requester),
			zap.String("reason", reason),
		)
		return Result{Delivered: true, RecordCount: 0}, nil
	}

	sum := summarize(records, d.cfg.Preview)
	id := d.newID()
	generated := d.now().UTC()
	attachmentName := "events-" + generated.Format("2006-01-02") + ".json"
	rep := buildReport(id, requester, reason, generated.Format(generatedAtLayout), attachmentName, sum)

	html, err := renderHTML(rep)
	if err != nil {
		return Result{RecordCount: sum.Total, DispatchID: id}, err
	}

	attachment, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return Result{RecordCount: sum.Total, DispatchID: id}, fmt.Errorf("digest: marshal attachment: %w", err)
	}

	subj := subject(sum.Total)
	if d.cfg.SubjectPrefix != "" {
		subj = d.cfg.SubjectPrefix + " " + subj
	}

	msg := &mail.Message{
		From:     d.cfg.From,
		To:       d.cfg.To,
		Subject:  subj,
		TextBody: renderText(rep),
		HTMLBody: html,
		Attachments: []mail.Attachment{
			{Filename: attachmentName, Content: attachment},
		},
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		d.logger.Warn("digest delivery failed",
			zap.String("dispatch_id", id),
			zap.Int("records", sum.Total),
			zap.Error(err),
		)
		return Result{Delivered: false, RecordCount: sum.Total, DispatchID: id}, fmt.Errorf("digest: deliver: %w", err)
	}

	// The report is already in the operator's hands; a failed audit copy is
	// not worth failing the dispatch over.
	if _, err := d.log.Backup(); err != nil {
		d.logger.Warn("post-dispatch backup failed",
			zap.String("dispatch_id", id),
			zap.Error(err),
		)
	}

	d.logger.Info("digest dispatched",
		zap.String("dispatch_id", id),
		zap.String("requester", requester),
		zap.String("reason", reason),
		zap.Int("records", sum.Total),
	)
	return Result{Delivered: true, RecordCount: sum.Total, DispatchID: id}, nil
}
