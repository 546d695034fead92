package datastore

import (
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CreateObservation inserts a new observation row.
func (ds *DataStore) CreateObservation(obs *Observation) error {
	if err := ds.DB.Create(obs).Error; err != nil {
		return fmt.Errorf("creating observation %q: %w", obs.StableID, err)
	}
	return nil
}

// SaveObservation persists field updates on an existing observation.
func (ds *DataStore) SaveObservation(obs *Observation) error {
	if err := ds.DB.Save(obs).Error; err != nil {
		return fmt.Errorf("saving observation %q: %w", obs.StableID, err)
	}
	return nil
}

// GetObservationByStableID returns the current observation carrying the given
// stable identity. With at most one completed import visible at a time there
// is at most one such row outside of a running import transaction.
func (ds *DataStore) GetObservationByStableID(stableID string) (Observation, error) {
	var obs Observation
	if err := ds.DB.Where("stable_id = ?", stableID).First(&obs).Error; err != nil {
		return Observation{}, fmt.Errorf("getting observation %q: %w", stableID, err)
	}
	return obs, nil
}

// IdenticalObservations returns every *other* observation sharing the given
// observation's stable identity, regardless of owning batch.
func (ds *DataStore) IdenticalObservations(obs *Observation) ([]Observation, error) {
	var matches []Observation
	err := ds.DB.
		Where("stable_id = ? AND id <> ?", obs.StableID, obs.ID).
		Order("id").
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("querying identical observations for %q: %w", obs.StableID, err)
	}
	return matches, nil
}

// MigrateLinkedEntities re-points every comment, view and unseen marker from
// the superseded observation to its successor. Rows are rewritten in place,
// never duplicated; an unseen marker whose (observation, user) slot is already
// taken on the successor is dropped instead.
func (ds *DataStore) MigrateLinkedEntities(from, to *Observation) error {
	if err := ds.DB.Model(&ObservationComment{}).
		Where("observation_id = ?", from.ID).
		Update("observation_id", to.ID).Error; err != nil {
		return fmt.Errorf("migrating comments from observation %d to %d: %w", from.ID, to.ID, err)
	}

	if err := ds.DB.Model(&ObservationView{}).
		Where("observation_id = ?", from.ID).
		Update("observation_id", to.ID).Error; err != nil {
		return fmt.Errorf("migrating views from observation %d to %d: %w", from.ID, to.ID, err)
	}

	// Unseen markers keep the per-(observation, user) uniqueness: markers the
	// successor already has are deleted rather than moved.
	var markers []ObservationUnseen
	if err := ds.DB.Where("observation_id = ?", from.ID).Find(&markers).Error; err != nil {
		return fmt.Errorf("loading unseen markers for observation %d: %w", from.ID, err)
	}
	for i := range markers {
		marker := &markers[i]
		var count int64
		if err := ds.DB.Model(&ObservationUnseen{}).
			Where("observation_id = ? AND user_id = ?", to.ID, marker.UserID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("checking unseen marker collision: %w", err)
		}
		if count > 0 {
			if err := ds.DB.Delete(marker).Error; err != nil {
				return fmt.Errorf("dropping colliding unseen marker %d: %w", marker.ID, err)
			}
			continue
		}
		if err := ds.DB.Model(marker).Update("observation_id", to.ID).Error; err != nil {
			return fmt.Errorf("migrating unseen marker %d: %w", marker.ID, err)
		}
	}
	return nil
}

// CountObservationsForImport counts the observations owned by a batch.
func (ds *DataStore) CountObservationsForImport(importID uint) (int64, error) {
	var count int64
	if err := ds.DB.Model(&Observation{}).Where("data_import_id = ?", importID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting observations for import #%d: %w", importID, err)
	}
	return count, nil
}

// PurgeObservationsNotInImport deletes every observation not owned by the
// given batch, together with any dependent rows that were not migrated.
// Dependents are enumerated explicitly, nothing relies on cascading foreign
// keys. The deletes are set-based subqueries: a full snapshot supersedes
// hundreds of thousands of rows, far past any bind variable limit.
// Returns the number of observations deleted.
func (ds *DataStore) PurgeObservationsNotInImport(importID uint) (int64, error) {
	staleIDs := func() *gorm.DB {
		return ds.DB.Model(&Observation{}).Select("id").Where("data_import_id <> ?", importID)
	}

	// Anything still pointing at a stale observation was not migrated and
	// goes away with it.
	if err := ds.DB.Where("observation_id IN (?)", staleIDs()).Delete(&ObservationComment{}).Error; err != nil {
		return 0, fmt.Errorf("deleting orphaned comments: %w", err)
	}
	if err := ds.DB.Where("observation_id IN (?)", staleIDs()).Delete(&ObservationView{}).Error; err != nil {
		return 0, fmt.Errorf("deleting orphaned views: %w", err)
	}
	if err := ds.DB.Where("observation_id IN (?)", staleIDs()).Delete(&ObservationUnseen{}).Error; err != nil {
		return 0, fmt.Errorf("deleting orphaned unseen markers: %w", err)
	}

	result := ds.DB.Where("data_import_id <> ?", importID).Delete(&Observation{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting stale observations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkObservationAsViewed records a user's first visit to an observation and
// clears the corresponding unseen marker. Calling it again is a no-op: the
// original first-visit timestamp is kept.
func (ds *DataStore) MarkObservationAsViewed(observationID, userID uint) error {
	var existing ObservationView
	err := ds.DB.Where("observation_id = ? AND user_id = ?", observationID, userID).First(&existing).Error
	switch {
	case err == nil:
		// Already viewed, keep the first timestamp.
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		view := ObservationView{
			ObservationID: observationID,
			UserID:        userID,
			Timestamp:     time.Now().UTC(),
		}
		if err := ds.DB.Create(&view).Error; err != nil {
			return fmt.Errorf("creating observation view: %w", err)
		}
	default:
		return fmt.Errorf("checking observation view: %w", err)
	}

	if err := ds.DB.
		Where("observation_id = ? AND user_id = ?", observationID, userID).
		Delete(&ObservationUnseen{}).Error; err != nil {
		return fmt.Errorf("clearing unseen marker: %w", err)
	}
	return nil
}

// MarkObservationAsUnviewed removes a user's view of an observation. Returns
// false when the user had not viewed it.
func (ds *DataStore) MarkObservationAsUnviewed(observationID, userID uint) (bool, error) {
	result := ds.DB.
		Where("observation_id = ? AND user_id = ?", observationID, userID).
		Delete(&ObservationView{})
	if result.Error != nil {
		return false, fmt.Errorf("deleting observation view: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FirstViewedAt returns when the user first opened the observation, or nil if
// they never did.
func (ds *DataStore) FirstViewedAt(observationID, userID uint) (*time.Time, error) {
	var view ObservationView
	err := ds.DB.Where("observation_id = ? AND user_id = ?", observationID, userID).First(&view).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting observation view: %w", err)
	}
	return &view.Timestamp, nil
}

// CreateUnseenMarker flags an observation as pending the user's attention.
func (ds *DataStore) CreateUnseenMarker(observationID, userID uint) error {
	marker := ObservationUnseen{ObservationID: observationID, UserID: userID}
	if err := ds.DB.Create(&marker).Error; err != nil {
		return fmt.Errorf("creating unseen marker: %w", err)
	}
	return nil
}

// CommentsForObservation returns the comments on an observation, newest first.
func (ds *DataStore) CommentsForObservation(observationID uint) ([]ObservationComment, error) {
	var comments []ObservationComment
	err := ds.DB.
		Where("observation_id = ?", observationID).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("getting comments for observation %d: %w", observationID, err)
	}
	return comments, nil
}

// EmptyCommentsForDeletedUser clears the text and author of every comment
// authored by a deleted account. The rows stay so discussion threads keep
// their shape. Returns the number of comments emptied.
func (ds *DataStore) EmptyCommentsForDeletedUser(userID uint) (int64, error) {
	result := ds.DB.Model(&ObservationComment{}).
		Where("author_id = ?", userID).
		Updates(map[string]any{"text": "", "author_id": nil})
	if result.Error != nil {
		return 0, fmt.Errorf("emptying comments for user %d: %w", userID, result.Error)
	}
	return result.RowsAffected, nil
}
