package datastore

import (
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"
)

// CreateDataImport inserts the batch record for a new pipeline run.
func (ds *DataStore) CreateDataImport(di *DataImport) error {
	if err := ds.DB.Create(di).Error; err != nil {
		return fmt.Errorf("creating data import: %w", err)
	}
	return nil
}

// SaveDataImport persists counter and finalization updates.
func (ds *DataStore) SaveDataImport(di *DataImport) error {
	if err := ds.DB.Save(di).Error; err != nil {
		return fmt.Errorf("saving data import #%d: %w", di.ID, err)
	}
	return nil
}

// GetDataImport retrieves one batch record by id.
func (ds *DataStore) GetDataImport(id uint) (DataImport, error) {
	var di DataImport
	if err := ds.DB.First(&di, id).Error; err != nil {
		return DataImport{}, fmt.Errorf("getting data import #%d: %w", id, err)
	}
	return di, nil
}

// LatestCompletedDataImport returns the most recent completed batch, or nil
// when no import has ever completed.
func (ds *DataStore) LatestCompletedDataImport() (*DataImport, error) {
	var di DataImport
	err := ds.DB.Where("completed = ?", true).Order("id DESC").First(&di).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest completed data import: %w", err)
	}
	return &di, nil
}
