package datastore

import (
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gbif-alert/gbif-alert-go/internal/stableid"
)

// DatasetByKey returns the dataset with the given external key, or
// gorm.ErrRecordNotFound.
func (ds *DataStore) DatasetByKey(key string) (*Dataset, error) {
	var dataset Dataset
	if err := ds.DB.Where("gbif_dataset_key = ?", key).First(&dataset).Error; err != nil {
		return nil, err
	}
	return &dataset, nil
}

// CreateDataset inserts a new dataset.
func (ds *DataStore) CreateDataset(dataset *Dataset) error {
	if err := ds.DB.Create(dataset).Error; err != nil {
		return fmt.Errorf("creating dataset %q: %w", dataset.GBIFDatasetKey, err)
	}
	return nil
}

// SaveDataset persists name changes. Renaming never touches stable ids.
func (ds *DataStore) SaveDataset(dataset *Dataset) error {
	if err := ds.DB.Save(dataset).Error; err != nil {
		return fmt.Errorf("saving dataset %q: %w", dataset.GBIFDatasetKey, err)
	}
	return nil
}

// RefreshStableIdentity recomputes the stable id of every observation that
// belongs to the dataset. It must be called explicitly after the dataset's
// external key changed; it is deliberately not a save hook. Returns the
// number of observations updated.
func (ds *DataStore) RefreshStableIdentity(dataset *Dataset) (int64, error) {
	var observations []Observation
	if err := ds.DB.Where("dataset_id = ?", dataset.ID).Find(&observations).Error; err != nil {
		return 0, fmt.Errorf("loading observations for dataset %q: %w", dataset.GBIFDatasetKey, err)
	}

	var updated int64
	for i := range observations {
		obs := &observations[i]
		newID := stableid.Compute(obs.OccurrenceID, dataset.GBIFDatasetKey)
		if newID == obs.StableID {
			continue
		}
		if err := ds.DB.Model(obs).Update("stable_id", newID).Error; err != nil {
			return updated, fmt.Errorf("updating stable id for observation %d: %w", obs.ID, err)
		}
		updated++
	}
	return updated, nil
}

// PruneUnreferencedDatasets deletes every dataset with zero remaining
// observations. Alerts that explicitly filtered on a deleted dataset get it
// removed from their filter set; an alert whose dataset filter becomes empty
// reverts to "all datasets". Returns the deleted datasets.
func (ds *DataStore) PruneUnreferencedDatasets() ([]Dataset, error) {
	var datasets []Dataset
	if err := ds.DB.Find(&datasets).Error; err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}

	var deleted []Dataset
	for i := range datasets {
		dataset := datasets[i]

		var count int64
		if err := ds.DB.Model(&Observation{}).Where("dataset_id = ?", dataset.ID).Count(&count).Error; err != nil {
			return deleted, fmt.Errorf("counting observations for dataset %q: %w", dataset.GBIFDatasetKey, err)
		}
		if count > 0 {
			continue
		}

		// Drop the dataset from every alert filter set before deletion.
		if err := ds.DB.Exec("DELETE FROM alert_datasets WHERE dataset_id = ?", dataset.ID).Error; err != nil {
			return deleted, fmt.Errorf("unreferencing dataset %q from alerts: %w", dataset.GBIFDatasetKey, err)
		}
		if err := ds.DB.Delete(&Dataset{}, dataset.ID).Error; err != nil {
			return deleted, fmt.Errorf("deleting dataset %q: %w", dataset.GBIFDatasetKey, err)
		}
		deleted = append(deleted, dataset)
	}
	return deleted, nil
}

// IsNotFound reports whether err is the store's record-not-found error.
func IsNotFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}
