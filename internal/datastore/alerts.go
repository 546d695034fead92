package datastore

import (
	"fmt"
	"time"
)

// UsersWithAlerts returns every user owning at least one alert. Only those
// users can accumulate an unseen backlog.
func (ds *DataStore) UsersWithAlerts() ([]User, error) {
	var users []User
	err := ds.DB.
		Where("id IN (?)", ds.DB.Model(&Alert{}).Select("user_id")).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("getting users with alerts: %w", err)
	}
	return users, nil
}

// AlertsForUser returns a user's alerts with their filter sets preloaded.
func (ds *DataStore) AlertsForUser(userID uint) ([]Alert, error) {
	var alerts []Alert
	err := ds.DB.
		Preload("Species").
		Preload("Datasets").
		Preload("Areas").
		Where("user_id = ?", userID).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("getting alerts for user %d: %w", userID, err)
	}
	return alerts, nil
}

// GetAllAlerts returns every alert with filter sets and owner preloaded, for
// the notification scheduler.
func (ds *DataStore) GetAllAlerts() ([]Alert, error) {
	var alerts []Alert
	err := ds.DB.
		Preload("Species").
		Preload("Datasets").
		Preload("Areas").
		Preload("User").
		Order("id").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("getting all alerts: %w", err)
	}
	return alerts, nil
}

// Matches reports whether an observation satisfies the alert's filters. An
// empty species, dataset or area set matches everything.
func (a *Alert) Matches(obs *Observation) bool {
	if len(a.Species) > 0 {
		found := false
		for i := range a.Species {
			if a.Species[i].ID == obs.SpeciesID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(a.Datasets) > 0 {
		found := false
		for i := range a.Datasets {
			if a.Datasets[i].ID == obs.DatasetID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(a.Areas) > 0 {
		if obs.Latitude == nil || obs.Longitude == nil {
			return false
		}
		found := false
		for i := range a.Areas {
			if a.Areas[i].ContainsPoint(*obs.Latitude, *obs.Longitude) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// UnseenObservationsForAlert returns the observations in the alert owner's
// unseen backlog that match the alert's filters.
func (ds *DataStore) UnseenObservationsForAlert(alert *Alert) ([]Observation, error) {
	var observations []Observation
	err := ds.DB.
		Joins("JOIN observation_unseens ou ON ou.observation_id = observations.id").
		Where("ou.user_id = ?", alert.UserID).
		Order("observations.id").
		Find(&observations).Error
	if err != nil {
		return nil, fmt.Errorf("getting unseen observations for alert %d: %w", alert.ID, err)
	}

	matching := observations[:0]
	for i := range observations {
		if alert.Matches(&observations[i]) {
			matching = append(matching, observations[i])
		}
	}
	return matching, nil
}

// SetAlertLastSent records a confirmed delivery. Only called after the
// notification collaborator reported success.
func (ds *DataStore) SetAlertLastSent(alertID uint, sentAt time.Time) error {
	if err := ds.DB.Model(&Alert{}).Where("id = ?", alertID).
		Update("last_email_sent_on", sentAt).Error; err != nil {
		return fmt.Errorf("updating last sent timestamp for alert %d: %w", alertID, err)
	}
	return nil
}
