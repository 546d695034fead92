// interfaces.go defines the store interface for database operations
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gbif-alert/gbif-alert-go/internal/conf"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	// Transaction runs fn against a transaction-scoped store. A returned
	// error rolls the whole transaction back.
	Transaction(fn func(tx *DataStore) error) error

	// Species reference data
	GetAllSpecies() ([]Species, error)
	SpeciesByTaxonKey() (map[int]Species, error)
	CreateSpecies(species *Species) error

	// Datasets
	DatasetByKey(key string) (*Dataset, error)
	CreateDataset(dataset *Dataset) error
	SaveDataset(dataset *Dataset) error
	RefreshStableIdentity(dataset *Dataset) (int64, error)
	PruneUnreferencedDatasets() ([]Dataset, error)

	// Import batches
	CreateDataImport(di *DataImport) error
	SaveDataImport(di *DataImport) error
	GetDataImport(id uint) (DataImport, error)
	LatestCompletedDataImport() (*DataImport, error)

	// Observations
	CreateObservation(obs *Observation) error
	SaveObservation(obs *Observation) error
	GetObservationByStableID(stableID string) (Observation, error)
	IdenticalObservations(obs *Observation) ([]Observation, error)
	MigrateLinkedEntities(from, to *Observation) error
	CountObservationsForImport(importID uint) (int64, error)
	PurgeObservationsNotInImport(importID uint) (int64, error)

	// Views, unseen markers and comments
	MarkObservationAsViewed(observationID, userID uint) error
	MarkObservationAsUnviewed(observationID, userID uint) (bool, error)
	FirstViewedAt(observationID, userID uint) (*time.Time, error)
	CreateUnseenMarker(observationID, userID uint) error
	CommentsForObservation(observationID uint) ([]ObservationComment, error)
	EmptyCommentsForDeletedUser(userID uint) (int64, error)

	// Maintenance lock (the import exclusion gate)
	AcquireMaintenanceLock(holder string) error
	ReleaseMaintenanceLock() error
	MaintenanceLockHolder() (string, bool, error)

	// Users and alerts
	UsersWithAlerts() ([]User, error)
	AlertsForUser(userID uint) ([]Alert, error)
	GetAllAlerts() ([]Alert, error)
	UnseenObservationsForAlert(alert *Alert) ([]Observation, error)
	SetAlertLastSent(alertID uint, sentAt time.Time) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a store for the configured backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// Transaction runs fn with a store bound to a single database transaction.
func (ds *DataStore) Transaction(fn func(tx *DataStore) error) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&DataStore{DB: tx})
	})
}

// Open is provided by the backend-specific stores.
func (ds *DataStore) Open() error {
	return fmt.Errorf("open is backend specific")
}

// Close is provided by the backend-specific stores.
func (ds *DataStore) Close() error {
	return nil
}

// performAutoMigration keeps the schema in sync with the model structs.
func performAutoMigration(db *gorm.DB, dbType string) error {
	if err := db.AutoMigrate(
		&User{},
		&Species{},
		&Dataset{},
		&DataImport{},
		&Observation{},
		&ObservationComment{},
		&ObservationView{},
		&ObservationUnseen{},
		&Alert{},
		&Area{},
		&MaintenanceLock{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}
	return nil
}
