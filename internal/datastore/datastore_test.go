package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gbif-alert/gbif-alert-go/internal/stableid"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, performAutoMigration(db, "SQLite"))

	return &DataStore{DB: db}
}

func seedUser(t *testing.T, ds *DataStore, username string) User {
	t.Helper()
	user := User{Username: username, NotificationDelayDays: 365}
	require.NoError(t, ds.DB.Create(&user).Error)
	return user
}

func seedSpecies(t *testing.T, ds *DataStore, name string, taxonKey int) Species {
	t.Helper()
	species := Species{Name: name, GBIFTaxonKey: taxonKey, GroupCode: "PL"}
	require.NoError(t, ds.DB.Create(&species).Error)
	return species
}

func seedDataset(t *testing.T, ds *DataStore, name, key string) Dataset {
	t.Helper()
	dataset := Dataset{Name: name, GBIFDatasetKey: key}
	require.NoError(t, ds.DB.Create(&dataset).Error)
	return dataset
}

func seedImport(t *testing.T, ds *DataStore) DataImport {
	t.Helper()
	di := DataImport{Start: time.Now().UTC()}
	require.NoError(t, ds.DB.Create(&di).Error)
	return di
}

// seedObservation inserts an observation with a computed stable id.
func seedObservation(t *testing.T, ds *DataStore, occurrenceID string, species Species, dataset Dataset, di DataImport) Observation {
	t.Helper()
	lat, lon := 50.85, 4.35
	obs := Observation{
		GBIFID:              "gbif-" + occurrenceID,
		OccurrenceID:        occurrenceID,
		StableID:            stableid.Compute(occurrenceID, dataset.GBIFDatasetKey),
		SpeciesID:           species.ID,
		Latitude:            &lat,
		Longitude:           &lon,
		Date:                time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		DataImportID:        di.ID,
		InitialDataImportID: di.ID,
		DatasetID:           dataset.ID,
	}
	require.NoError(t, ds.DB.Create(&obs).Error)
	return obs
}
