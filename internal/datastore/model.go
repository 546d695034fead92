// model.go defines the data model for the occurrence pipeline
package datastore

import "time"

// User owns alerts, comments and views. NotificationDelayDays bounds how old
// an observation may be and still enter this user's unseen backlog.
type User struct {
	ID                    uint   `gorm:"primaryKey"`
	Username              string `gorm:"uniqueIndex;not null"`
	Email                 string
	NotificationDelayDays int `gorm:"default:365"`
	CreatedAt             time.Time
}

// Species is reference data keyed by the GBIF taxon key. The import pipeline
// only looks it up, it never mutates it.
type Species struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	GBIFTaxonKey int    `gorm:"column:gbif_taxon_key;uniqueIndex;not null"`
	GroupCode    string `gorm:"type:varchar(3)"`
}

// Dataset is a named provenance source. The external key is the identity:
// renaming a dataset is harmless, rekeying it moves every stable id.
type Dataset struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	GBIFDatasetKey string `gorm:"column:gbif_dataset_key;uniqueIndex;not null"`
}

// DataImport records one pipeline run. Created at orchestration start,
// finalized on commit, never deleted.
type DataImport struct {
	ID             uint      `gorm:"primaryKey"`
	Start          time.Time `gorm:"not null"`
	End            *time.Time
	Completed      bool   `gorm:"default:false"`
	GBIFDownloadID string `gorm:"column:gbif_download_id"`
	GBIFPredicate  string `gorm:"column:gbif_predicate;type:text"` // serialized download predicate, opaque
	ImportedCount  int    `gorm:"default:0"`
	SkippedCount   int    `gorm:"default:0"`
	AmbiguousCount int    `gorm:"default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Observation is one occurrence record. It carries four identifiers: the
// database primary key, the GBIF-assigned id (human-facing, unstable across
// imports), the raw upstream occurrence id, and the derived stable id used to
// recognize the same occurrence between imports.
type Observation struct {
	ID           uint   `gorm:"primaryKey"`
	GBIFID       string `gorm:"column:gbif_id;uniqueIndex:idx_observations_gbifid_import"`
	OccurrenceID string `gorm:"type:text;not null"`
	StableID     string `gorm:"type:varchar(40);index:idx_observations_stable_id;uniqueIndex:idx_observations_stableid_import"`

	SpeciesID uint    `gorm:"index;not null"`
	Species   Species `gorm:"foreignKey:SpeciesID"`

	Latitude  *float64
	Longitude *float64
	Date      time.Time `gorm:"type:date;not null"`

	IndividualCount                *int
	Locality                       string `gorm:"type:text"`
	Municipality                   string `gorm:"type:text"`
	BasisOfRecord                  string `gorm:"type:text"`
	RecordedBy                     string `gorm:"type:text"`
	CoordinateUncertaintyInMeters  *float64
	References                     string `gorm:"type:text"`

	// Owning batch: part of both unique indexes above.
	DataImportID uint       `gorm:"uniqueIndex:idx_observations_gbifid_import;uniqueIndex:idx_observations_stableid_import;index;not null"`
	DataImport   DataImport `gorm:"foreignKey:DataImportID"`

	// Batch in which this identity was first seen, preserved across
	// reconciliation.
	InitialDataImportID uint `gorm:"index;not null"`

	DatasetID uint    `gorm:"index;not null"`
	Dataset   Dataset `gorm:"foreignKey:DatasetID"`
}

// ObservationComment is a user-authored note. It survives reconciliation by
// being re-pointed at the successor observation; when its author account is
// deleted the text is emptied instead of the row being removed.
type ObservationComment struct {
	ID            uint  `gorm:"primaryKey"`
	ObservationID uint  `gorm:"index;not null"`
	AuthorID      *uint `gorm:"index"`
	Text          string `gorm:"type:text"`
	CreatedAt     time.Time
}

// ObservationView keeps the timestamp of a user's first visit to an
// observation's detail page. No sophisticated history, just the first visit.
type ObservationView struct {
	ID            uint      `gorm:"primaryKey"`
	ObservationID uint      `gorm:"uniqueIndex:idx_observation_views_obs_user;not null"`
	UserID        uint      `gorm:"uniqueIndex:idx_observation_views_obs_user;index;not null"`
	Timestamp     time.Time `gorm:"not null"`
}

// ObservationUnseen marks an observation as pending a user's attention for
// notification purposes. Its presence means "not yet acknowledged".
type ObservationUnseen struct {
	ID            uint `gorm:"primaryKey"`
	ObservationID uint `gorm:"uniqueIndex:idx_observation_unseen_obs_user;not null"`
	UserID        uint `gorm:"uniqueIndex:idx_observation_unseen_obs_user;index;not null"`
	CreatedAt     time.Time
}

// Alert notification frequencies.
const (
	FrequencyNone    = "N"
	FrequencyDaily   = "D"
	FrequencyWeekly  = "W"
	FrequencyMonthly = "M"
)

// Alert is a per-user saved filter plus a notification cadence. Empty filter
// sets match everything.
type Alert struct {
	ID     uint `gorm:"primaryKey"`
	Name   string
	UserID uint `gorm:"index;not null"`
	User   User `gorm:"foreignKey:UserID"`

	Species  []Species `gorm:"many2many:alert_species"`
	Datasets []Dataset `gorm:"many2many:alert_datasets"`
	Areas    []Area    `gorm:"many2many:alert_areas"`

	EmailFrequency  string `gorm:"type:varchar(1);default:'W'"`
	LastEmailSentOn *time.Time
}

// Area is a named multipolygon that can restrict an alert geographically.
// A nil owner makes the area available to everyone.
type Area struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"not null"`
	OwnerID *uint
	Polygon MultiPolygon `gorm:"serializer:json"`
}
