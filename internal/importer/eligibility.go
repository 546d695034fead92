package importer

import (
	"log/slog"
	"time"

	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
	"github.com/gbif-alert/gbif-alert-go/internal/observability/metrics"
)

// eligibilityEngine decides, once per new identity, which users get the
// observation in their notification backlog. The decision is made at import
// time and never re-evaluated when alerts change later.
type eligibilityEngine struct {
	tx           *datastore.DataStore
	users        []datastore.User
	alertsByUser map[uint][]datastore.Alert
	now          time.Time
	metrics      *metrics.ImportMetrics
	log          *slog.Logger
}

// newEligibilityEngine loads every user owning at least one alert, with their
// alerts, once per run.
func newEligibilityEngine(tx *datastore.DataStore, now time.Time, m *metrics.ImportMetrics, log *slog.Logger) (*eligibilityEngine, error) {
	users, err := tx.UsersWithAlerts()
	if err != nil {
		return nil, err
	}
	alertsByUser := make(map[uint][]datastore.Alert, len(users))
	for _, user := range users {
		alerts, err := tx.AlertsForUser(user.ID)
		if err != nil {
			return nil, err
		}
		alertsByUser[user.ID] = alerts
	}
	return &eligibilityEngine{
		tx:           tx,
		users:        users,
		alertsByUser: alertsByUser,
		now:          now,
		metrics:      m,
		log:          log,
	}, nil
}

// evaluate creates unseen markers for every user whose delay window admits
// the observation and who has at least one matching alert. Users without a
// marker implicitly treat the observation as already seen.
func (e *eligibilityEngine) evaluate(obs *datastore.Observation) error {
	for i := range e.users {
		user := &e.users[i]
		if !e.withinDelayWindow(obs, user) {
			continue
		}
		if !e.anyAlertMatches(obs, user.ID) {
			continue
		}
		if err := e.tx.CreateUnseenMarker(obs.ID, user.ID); err != nil {
			return err
		}
		e.metrics.RecordUnseenMarker()
	}
	return nil
}

// withinDelayWindow reports whether the observation date is not older than
// the user's notification delay.
func (e *eligibilityEngine) withinDelayWindow(obs *datastore.Observation, user *datastore.User) bool {
	delayDays := user.NotificationDelayDays
	if delayDays <= 0 {
		delayDays = 365
	}
	cutoff := e.now.AddDate(0, 0, -delayDays)
	return !obs.Date.Before(cutoff)
}

func (e *eligibilityEngine) anyAlertMatches(obs *datastore.Observation, userID uint) bool {
	for i := range e.alertsByUser[userID] {
		if e.alertsByUser[userID][i].Matches(obs) {
			return true
		}
	}
	return false
}
