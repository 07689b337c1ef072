package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"painel-pcm-backend/internal/model"
	"painel-pcm-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job announces that activities of one management unit changed.
type Job struct {
	Unit    string
	Changed int
}

// JobsFor groups the changed keys of a snapshot by management unit.
func JobsFor(records []model.Record, changed []string) []Job {
	if len(changed) == 0 {
		return nil
	}
	keys := make(map[string]struct{}, len(changed))
	for _, k := range changed {
		keys[k] = struct{}{}
	}

	perUnit := make(map[string]int)
	for _, r := range records {
		if _, ok := keys[r.Key()]; !ok {
			continue
		}
		// Duplicated keys count once.
		delete(keys, r.Key())
		unit := strings.TrimSpace(r.ManagementUnit)
		if unit == "" || unit == "-" {
			continue
		}
		perUnit[unit]++
	}

	jobs := make([]Job, 0, len(perUnit))
	for unit, n := range perUnit {
		jobs = append(jobs, Job{Unit: unit, Changed: n})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Unit < jobs[j].Unit })
	return jobs
}

// Message renders the notification text of a job.
func (j Job) Message() string {
	if j.Changed == 1 {
		return fmt.Sprintf("1 atividade atualizada em %s", j.Unit)
	}
	return fmt.Sprintf("%d atividades atualizadas em %s", j.Changed, j.Unit)
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*8), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Worker %d processing unit %q", id, job.Unit)
			wp.sendNotificationsForUnit(ctx, job)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job. It never blocks the caller; when the queue is full the
// job is dropped.
func (wp *WorkerPool) Dispatch(job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	default:
		log.Printf("Notification queue full, dropping job for unit %q", job.Unit)
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// sendNotificationsForUnit fetches the subscribers of a unit and notifies each of them.
func (wp *WorkerPool) sendNotificationsForUnit(ctx context.Context, job Job) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_unit_mapping sm ON sm.push_subscription_endpoint = push_subscriptions.endpoint").
		Joins("JOIN management_units mu ON mu.id = sm.management_unit_id").
		Where("mu.name = ?", job.Unit).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for unit %q: %v", job.Unit, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for unit %q", len(subscriptions), job.Unit)
	message := []byte(job.Message())
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, message)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := store.DeleteSubscription(ctx, wp.db, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
