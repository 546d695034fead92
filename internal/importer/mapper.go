// Package importer implements the batch import pipeline: it streams snapshot
// rows into observations, reconciles identities with the previous batch and
// seeds the notification backlog for new identities.
package importer

import (
	"context"
	"time"

	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
	"github.com/gbif-alert/gbif-alert-go/internal/errors"
	"github.com/gbif-alert/gbif-alert-go/internal/snapshot"
	"github.com/gbif-alert/gbif-alert-go/internal/stableid"
)

// SkipReason tags why a row was rejected. Rejections are bookkeeping, not
// failures.
type SkipReason string

const (
	SkipNoYear         SkipReason = "no_year"
	SkipNoCoordinates  SkipReason = "no_coordinates"
	SkipNoOccurrenceID SkipReason = "no_occurrence_id"
	SkipNotPresent     SkipReason = "not_present"
)

// RowSkippedError signals a non-fatal row rejection.
type RowSkippedError struct {
	Reason SkipReason
}

func (e *RowSkippedError) Error() string {
	return "row skipped: " + string(e.Reason)
}

// SkipReasonOf extracts the skip reason, or ("", false) for other errors.
func SkipReasonOf(err error) (SkipReason, bool) {
	var skipped *RowSkippedError
	if errors.As(err, &skipped) {
		return skipped.Reason, true
	}
	return "", false
}

// rowMapper turns snapshot rows into observations owned by the current batch.
type rowMapper struct {
	batch        *datastore.DataImport
	speciesByKey map[int]datastore.Species
	datasets     *datasetRegistry
}

// mapRow validates and converts one row. A *RowSkippedError means the row is
// rejected but the batch continues; any other error is fatal for the batch.
// The observation is returned unpersisted.
func (m *rowMapper) mapRow(ctx context.Context, row *snapshot.Row) (*datastore.Observation, error) {
	if row.Year == 0 {
		return nil, &RowSkippedError{Reason: SkipNoYear}
	}
	if row.DecimalLatitude == nil || row.DecimalLongitude == nil {
		return nil, &RowSkippedError{Reason: SkipNoCoordinates}
	}
	if row.OccurrenceID == "" {
		return nil, &RowSkippedError{Reason: SkipNoOccurrenceID}
	}
	if row.OccurrenceStatus != "PRESENT" {
		return nil, &RowSkippedError{Reason: SkipNotPresent}
	}

	species, err := m.resolveSpecies(row)
	if err != nil {
		return nil, err
	}

	dataset, err := m.datasets.getOrCreate(ctx, row.DatasetKey, row.DatasetName)
	if err != nil {
		return nil, err
	}

	// Partial dates keep the row: missing month or day default to 1.
	month, day := row.Month, row.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}

	return &datastore.Observation{
		GBIFID:                        row.GBIFID,
		OccurrenceID:                  row.OccurrenceID,
		StableID:                      stableid.Compute(row.OccurrenceID, row.DatasetKey),
		SpeciesID:                     species.ID,
		Latitude:                      row.DecimalLatitude,
		Longitude:                     row.DecimalLongitude,
		Date:                          time.Date(row.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
		IndividualCount:               row.IndividualCount,
		Locality:                      row.Locality,
		Municipality:                  row.Municipality,
		BasisOfRecord:                 row.BasisOfRecord,
		RecordedBy:                    row.RecordedBy,
		CoordinateUncertaintyInMeters: row.CoordinateUncertaintyInMeters,
		References:                    row.References,
		DataImportID:                  m.batch.ID,
		InitialDataImportID:           m.batch.ID,
		DatasetID:                     dataset.ID,
	}, nil
}

// resolveSpecies tries the taxon key, then the accepted taxon key, then the
// species key. A full miss aborts the batch: the species table is reference
// data assumed complete, so an unknown key is a data quality problem for a
// human, not a row to drop silently.
func (m *rowMapper) resolveSpecies(row *snapshot.Row) (datastore.Species, error) {
	for _, key := range []int{row.TaxonKey, row.AcceptedTaxonKey, row.SpeciesKey} {
		if key == 0 {
			continue
		}
		if species, ok := m.speciesByKey[key]; ok {
			return species, nil
		}
	}
	return datastore.Species{}, errors.Newf(
		"no known species for row gbifID=%s occurrenceID=%q (taxonKey=%d acceptedTaxonKey=%d speciesKey=%d)",
		row.GBIFID, row.OccurrenceID, row.TaxonKey, row.AcceptedTaxonKey, row.SpeciesKey).
		Component("importer").
		Category(errors.CategorySpeciesResolution).
		Context("gbif_id", row.GBIFID).
		Context("occurrence_id", row.OccurrenceID).
		Build()
}
