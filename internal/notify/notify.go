package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/pingwatch/internal/domain"
)

const (
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type WebhookSender interface {
	Post(ctx context.Context, url string, payload WebhookPayload) error
}

// ChannelResult is the outcome of one channel in a dispatch.
type ChannelResult struct {
	Channel  string
	Err      error
	Duration time.Duration
}

// Report collects every channel attempted by one dispatch. Failures are
// recorded here and logged; they are never returned to the caller as errors.
type Report struct {
	Channels []ChannelResult
}

func (r Report) Attempted() int { return len(r.Channels) }

func (r Report) Failed() int {
	n := 0
	for _, c := range r.Channels {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Err combines channel failures, or nil when every channel succeeded.
func (r Report) Err() error {
	var err error
	for _, c := range r.Channels {
		if c.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", c.Channel, c.Err))
		}
	}
	return err
}

// Result returns the entry for one channel.
func (r Report) Result(channel string) (ChannelResult, bool) {
	for _, c := range r.Channels {
		if c.Channel == channel {
			return c, true
		}
	}
	return ChannelResult{}, false
}

type Dispatcher struct {
	logger  *zap.Logger
	email   EmailSender
	webhook WebhookSender
}

func NewDispatcher(logger *zap.Logger, email EmailSender, webhook WebhookSender) *Dispatcher {
	return &Dispatcher{logger: logger, email: email, webhook: webhook}
}

// NotifyDown sends the down alert on every channel the monitor configures.
func (d *Dispatcher) NotifyDown(ctx context.Context, m domain.Monitor, r domain.PingResult) Report {
	return d.dispatch(ctx, "down", m, DownMessage(m, r))
}

// NotifyUp sends the recovery alert; downtime is recoveredAt - downSince.
func (d *Dispatcher) NotifyUp(ctx context.Context, m domain.Monitor, downSince, recoveredAt time.Time) Report {
	return d.dispatch(ctx, "up", m, RecoveryMessage(m, downSince, recoveredAt))
}

type channelJob struct {
	name string
	send func(context.Context) error
}

func (d *Dispatcher) channels(m domain.Monitor, msg Message) []channelJob {
	var jobs []channelJob
	if m.AlertEmail != "" && d.email != nil {
		jobs = append(jobs, channelJob{ChannelEmail, func(ctx context.Context) error {
			return d.email.SendEmail(ctx, m.AlertEmail, msg.Subject, msg.Body())
		}})
	}
	if m.WebhookURL != "" && d.webhook != nil {
		jobs = append(jobs, channelJob{ChannelWebhook, func(ctx context.Context) error {
			return d.webhook.Post(ctx, m.WebhookURL, msg.WebhookPayload())
		}})
	}
	return jobs
}

// dispatch runs all channels concurrently and waits for every one of them.
func (d *Dispatcher) dispatch(ctx context.Context, kind string, m domain.Monitor, msg Message) Report {
	jobs := d.channels(m, msg)
	results := make([]ChannelResult, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job channelJob) {
			defer wg.Done()
			start := time.Now()
			err := runChannel(ctx, job)
			results[i] = ChannelResult{Channel: job.name, Err: err, Duration: time.Since(start)}
		}(i, job)
	}
	wg.Wait()

	rep := Report{Channels: results}
	for _, c := range rep.Channels {
		if c.Err != nil {
			d.logger.Warn("alert_channel_failed",
				zap.String("kind", kind),
				zap.String("channel", c.Channel),
				zap.String("monitor_id", string(m.ID)),
				zap.Error(c.Err),
			)
			continue
		}
		d.logger.Info("alert_sent",
			zap.String("kind", kind),
			zap.String("channel", c.Channel),
			zap.String("monitor_id", string(m.ID)),
			zap.Duration("took", c.Duration),
		)
	}
	return rep
}

func runChannel(ctx context.Context, job channelJob) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("channel panic: %v", p)
		}
	}()
	return job.send(ctx)
}
