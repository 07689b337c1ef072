package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"painel-pcm-backend/config"
	"painel-pcm-backend/internal/clock"
	"painel-pcm-backend/internal/kpi"
	"painel-pcm-backend/internal/model"
)

const webhookTimeout = 30 * time.Second

// SnapshotSource provides the records a report is built from.
type SnapshotSource interface {
	Snapshot() model.Snapshot
}

// Scheduler posts a report for every configured cron schedule.
type Scheduler struct {
	cfg     config.ReportConfig
	ignored []string
	source  SnapshotSource
	client  *http.Client
	clock   clock.Clock
	loc     *time.Location
}

// NewScheduler creates a scheduler evaluating cron expressions in loc.
func NewScheduler(cfg config.ReportConfig, ignored []string, src SnapshotSource, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cfg:     cfg,
		ignored: ignored,
		source:  src,
		client:  &http.Client{Timeout: webhookTimeout},
		clock:   clock.Real{},
		loc:     loc,
	}
}

// Start registers every schedule and runs them until ctx is cancelled. Schedules
// with an invalid cron expression are skipped.
func (s *Scheduler) Start(ctx context.Context) int {
	if strings.TrimSpace(s.cfg.WebhookURL) == "" {
		log.Println("Reports disabled (report.webhook_url not set)")
		return 0
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithLocation(s.loc), cron.WithParser(parser))

	registered := 0
	for _, sched := range s.cfg.Schedules {
		spec := strings.TrimSpace(sched.Cron)
		if _, err := c.AddFunc(spec, func() { s.run(ctx, sched) }); err != nil {
			log.Printf("Invalid cron '%s' for report %q: %v. Report disabled.", spec, sched.Type, err)
			continue
		}
		log.Printf("Report %q scheduled (cron: %s)", sched.Type, spec)
		registered++
	}
	if registered == 0 {
		return 0
	}

	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		log.Println("Report scheduler stopped.")
	}()
	return registered
}

func (s *Scheduler) run(ctx context.Context, sched config.ReportSchedule) {
	if err := s.Send(ctx, sched); err != nil {
		log.Printf("Report %q failed: %v", sched.Type, err)
		return
	}
	log.Printf("Report %q sent", sched.Type)
}

// Send builds the report of one schedule from the current snapshot and posts it.
func (s *Scheduler) Send(ctx context.Context, sched config.ReportSchedule) error {
	agg, err := kpi.Lookup(sched.Strategy, s.ignored)
	if err != nil {
		return err
	}

	now := s.clock.Now().In(s.loc)
	payload, err := Build(sched.Type, s.cfg.Recipient, agg, s.source.Snapshot().Records, now)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
