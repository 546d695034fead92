package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
	"github.com/gbif-alert/gbif-alert-go/internal/logging"
	"github.com/gbif-alert/gbif-alert-go/internal/observability/metrics"
)

// Delivery thresholds are inclusive lower bounds: an alert becomes due the
// moment the elapsed time reaches the threshold, not before.
const (
	dailyThreshold   = 24 * time.Hour
	weeklyThreshold  = 7 * 24 * time.Hour
	monthlyThreshold = 30 * 24 * time.Hour
)

// Scheduler walks all alerts on a fixed interval and delivers a digest for
// every due alert with a non-empty matching backlog.
type Scheduler struct {
	store    datastore.Interface
	provider Provider
	metrics  *metrics.AlertMetrics
	log      *slog.Logger
}

// NewScheduler wires a scheduler. The metrics may be nil.
func NewScheduler(store datastore.Interface, provider Provider, m *metrics.AlertMetrics) *Scheduler {
	return &Scheduler{
		store:    store,
		provider: provider,
		metrics:  m,
		log:      logging.ForService("scheduler"),
	}
}

// TickResult summarizes one scheduler pass.
type TickResult struct {
	Evaluated int
	Sent      int
	Failed    int
}

// ProcessAlerts runs one scheduler pass at the given instant. An active
// import batch skips the whole pass; alerts are otherwise processed in
// isolation so one failing alert never blocks the rest.
func (s *Scheduler) ProcessAlerts(ctx context.Context, now time.Time) (*TickResult, error) {
	result := &TickResult{}

	holder, held, err := s.store.MaintenanceLockHolder()
	if err != nil {
		return result, err
	}
	if held {
		s.log.Info("import batch active, skipping scheduler pass", "holder", holder)
		return result, nil
	}

	alerts, err := s.store.GetAllAlerts()
	if err != nil {
		return result, err
	}

	for i := range alerts {
		alert := &alerts[i]
		result.Evaluated++
		s.metrics.RecordEvaluated()

		sent, err := s.processOne(ctx, alert, now)
		if err != nil {
			result.Failed++
			s.metrics.RecordFailed(alert.EmailFrequency)
			s.log.Error("alert processing failed",
				"alert_id", alert.ID, "user_id", alert.UserID, "error", err)
			continue
		}
		if sent {
			result.Sent++
			s.metrics.RecordSent(alert.EmailFrequency)
		}
	}

	s.log.Info("scheduler pass finished",
		"evaluated", result.Evaluated, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// processOne evaluates and possibly delivers a single alert. The recover
// keeps a panicking alert from taking down the scheduler pass.
func (s *Scheduler) processOne(ctx context.Context, alert *datastore.Alert, now time.Time) (sent bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
			err = fmt.Errorf("panic while processing alert %d: %v", alert.ID, r)
		}
	}()

	if !Due(alert, now) {
		return false, nil
	}

	observations, err := s.store.UnseenObservationsForAlert(alert)
	if err != nil {
		return false, err
	}
	if len(observations) == 0 {
		return false, nil
	}

	msg := digestMessage(alert, observations)
	if err := s.provider.Send(ctx, msg); err != nil {
		// The timestamp stays untouched so the next pass retries.
		return false, err
	}

	if err := s.store.SetAlertLastSent(alert.ID, now); err != nil {
		// Delivery is confirmed, so the alert counts as sent. The stale
		// timestamp means the next pass may deliver the digest again.
		s.log.Error("delivery confirmed but timestamp update failed",
			"alert_id", alert.ID, "user_id", alert.UserID, "error", err)
	}
	return true, nil
}

// Due reports whether the alert should be delivered at the given instant.
// Never-sent alerts are immediately due.
func Due(alert *datastore.Alert, now time.Time) bool {
	threshold, ok := frequencyThreshold(alert.EmailFrequency)
	if !ok {
		return false
	}
	if alert.LastEmailSentOn == nil {
		return true
	}
	return now.Sub(*alert.LastEmailSentOn) >= threshold
}

func frequencyThreshold(frequency string) (time.Duration, bool) {
	switch frequency {
	case datastore.FrequencyDaily:
		return dailyThreshold, true
	case datastore.FrequencyWeekly:
		return weeklyThreshold, true
	case datastore.FrequencyMonthly:
		return monthlyThreshold, true
	default:
		return 0, false
	}
}

func digestMessage(alert *datastore.Alert, observations []datastore.Observation) *Message {
	name := alert.Name
	if name == "" {
		name = fmt.Sprintf("alert #%d", alert.ID)
	}
	return &Message{
		Title: fmt.Sprintf("%d unseen observation(s) for %s", len(observations), name),
		Body: fmt.Sprintf(
			"Your alert %q has %d unseen observation(s) waiting for review.",
			name, len(observations)),
	}
}
