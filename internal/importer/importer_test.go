package importer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gbif-alert/gbif-alert-go/internal/conf"
	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
	"github.com/gbif-alert/gbif-alert-go/internal/errors"
	"github.com/gbif-alert/gbif-alert-go/internal/snapshot"
	"github.com/gbif-alert/gbif-alert-go/internal/stableid"
)

type fakeReader struct {
	rows       []*snapshot.Row
	next       int
	downloadID string
}

func (r *fakeReader) Next() (*snapshot.Row, error) {
	if r.next >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.next]
	r.next++
	return row, nil
}

func (r *fakeReader) DownloadID() string { return r.downloadID }
func (r *fakeReader) Close() error       { return nil }

type fakeDatasetAPI struct {
	titles map[string]string
	calls  int
}

func (f *fakeDatasetAPI) DatasetTitle(_ context.Context, key string) (string, error) {
	f.calls++
	return f.titles[key], nil
}

func newTestStore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = ":memory:"
	store := datastore.New(settings).(*datastore.SQLiteStore)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedSpecies(t *testing.T, store *datastore.SQLiteStore, name string, taxonKey int) datastore.Species {
	t.Helper()
	species := datastore.Species{Name: name, GBIFTaxonKey: taxonKey}
	require.NoError(t, store.CreateSpecies(&species))
	return species
}

func ptr[T any](v T) *T { return &v }

// validRow returns an importable row dated this year so default delay windows
// always admit it.
func validRow(gbifID, occurrenceID string, taxonKey int) *snapshot.Row {
	return &snapshot.Row{
		GBIFID:           gbifID,
		OccurrenceID:     occurrenceID,
		OccurrenceStatus: "PRESENT",
		TaxonKey:         taxonKey,
		Year:             time.Now().Year(),
		Month:            6,
		Day:              1,
		DecimalLatitude:  ptr(50.85),
		DecimalLongitude: ptr(4.35),
		DatasetKey:       "ds-key-1",
		DatasetName:      "Test dataset",
	}
}

func runImport(t *testing.T, store *datastore.SQLiteStore, api *fakeDatasetAPI, rows ...*snapshot.Row) (*Result, error) {
	t.Helper()
	if api == nil {
		api = &fakeDatasetAPI{}
	}
	return Run(context.Background(), Options{
		Store:      store,
		Snapshot:   &fakeReader{rows: rows, downloadID: "dl-test"},
		DatasetAPI: api,
	})
}

func TestRunImportsRows(t *testing.T) {
	store := newTestStore(t)
	seedSpecies(t, store, "Vespa velutina", 1311477)

	var events []RowEvent
	result, err := Run(context.Background(), Options{
		Store:      store,
		Snapshot:   &fakeReader{rows: []*snapshot.Row{validRow("1", "occ-1", 1311477), validRow("2", "occ-2", 1311477)}, downloadID: "dl-42"},
		DatasetAPI: &fakeDatasetAPI{},
		Progress:   func(e RowEvent) { events = append(events, e) },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Imported)
	assert.Zero(t, result.Skipped)
	assert.Equal(t, []RowEvent{RowImported, RowImported}, events)

	batch, err := store.GetDataImport(result.ImportID)
	require.NoError(t, err)
	assert.True(t, batch.Completed)
	assert.NotNil(t, batch.End)
	assert.Equal(t, 2, batch.ImportedCount)
	assert.Equal(t, "dl-42", batch.GBIFDownloadID)

	obs, err := store.GetObservationByStableID(stableid.Compute("occ-1", "ds-key-1"))
	require.NoError(t, err)
	assert.Equal(t, result.ImportID, obs.DataImportID)
	assert.Equal(t, result.ImportID, obs.InitialDataImportID)

	dataset, err := store.DatasetByKey("ds-key-1")
	require.NoError(t, err)
	assert.Equal(t, "Test dataset", dataset.Name)

	// The gate is released after a successful run.
	_, held, err := store.MaintenanceLockHolder()
	require.NoError(t, err)
	assert.False(t, held)
}

func TestRunSkipsInvalidRows(t *testing.T) {
	store := newTestStore(t)
	seedSpecies(t, store, "Vespa velutina", 1311477)

	noYear := validRow("1", "occ-1", 1311477)
	noYear.Year = 0
	noCoords := validRow("2", "occ-2", 1311477)
	noCoords.DecimalLatitude = nil
	noOccID := validRow("3", "", 1311477)
	absent := validRow("4", "occ-4", 1311477)
	absent.OccurrenceStatus = "ABSENT"
	good := validRow("5", "occ-5", 1311477)

	result, err := runImport(t, store, nil, noYear, noCoords, noOccID, absent, good)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Imported)
	assert.Equal(t, 4, result.Skipped)

	batch, err := store.GetDataImport(result.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 4, batch.SkippedCount)
}

func TestRunPartialDatesDefaultToOne(t *testing.T) {
	store := newTestStore(t)
	seedSpecies(t, store, "Vespa velutina", 1311477)

	row := validRow("1", "occ-1", 1311477)
	row.Month = 0
	row.Day = 0

	result, err := runImport(t, store, nil, row)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Imported)

	obs, err := store.GetObservationByStableID(stableid.Compute("occ-1", "ds-key-1"))
	require.NoError(t, err)
	assert.Equal(t, time.Month(1), obs.Date.Month())
	assert.Equal(t, 1, obs.Date.Day())
}

func TestRunSpeciesFallbackChain(t *testing.T) {
	store := newTestStore(t)
	accepted := seedSpecies(t, store, "Accepted form", 222)
	generic := seedSpecies(t, store, "Generic form", 333)

	viaAccepted := validRow("1", "occ-1", 111)
	viaAccepted.AcceptedTaxonKey = 222
	viaSpeciesKey := validRow("2", "occ-2", 111)
	viaSpeciesKey.SpeciesKey = 333

	result, err := runImport(t, store, nil, viaAccepted, viaSpeciesKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Imported)

	obs1, err := store.GetObservationByStableID(stableid.Compute("occ-1", "ds-key-1"))
	require.NoError(t, err)
	assert.Equal(t, accepted.ID, obs1.SpeciesID)

	obs2, err := store.GetObservationByStableID(stableid.Compute("occ-2", "ds-key-1"))
	require.NoError(t, err)
	assert.Equal(t, generic.ID, obs2.SpeciesID)
}

func TestRunUnknownSpeciesAbortsAndRollsBack(t *testing.T) {
	store := newTestStore(t)
	seedSpecies(t, store, "Vespa velutina", 1311477)

	good := validRow("1", "occ-1", 1311477)
	unknown := validRow("2", "occ-2", 999999)

	_, err := runImport(t, store, nil, good, unknown)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategorySpeciesResolution))
	assert.Contains(t, err.Error(), "occ-2")

	// The whole transaction rolled back: no batch, no observations, no
	// datasets, gate released.
	latest, err := store.LatestCompletedDataImport()
	require.NoError(t, err)
	assert.Nil(t, latest)

	var obsCount int64
	require.NoError(t, store.DB.Model(&datastore.Observation{}).Count(&obsCount).Error)
	assert.Zero(t, obsCount)
	var importCount int64
	require.NoError(t, store.DB.Model(&datastore.DataImport{}).Count(&importCount).Error)
	assert.Zero(t, importCount)
	_, err = store.DatasetByKey("ds-key-1")
	assert.True(t, datastore.IsNotFound(err))

	_, held, err := store.MaintenanceLockHolder()
	require.NoError(t, err)
	assert.False(t, held)
}

func TestRunFailsFastWhenGateHeld(t *testing.T) {
	store := newTestStore(t)
	seedSpecies(t, store, "Vespa velutina", 1311477)
	require.NoError(t, store.AcquireMaintenanceLock("another-import"))

	_, err := runImport(t, store, nil, validRow("1", "occ-1", 1311477))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryState))

	// The foreign holder keeps the gate.
	holder, held, err := store.MaintenanceLockHolder()
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, "another-import", holder)
}

func TestRunReconciliationPreservesHistory(t *testing.T) {
	store := newTestStore(t)
	seedSpecies(t, store, "Vespa velutina", 1311477)

	first, err := runImport(t, store, nil, validRow("1", "occ-1", 1311477))
	require.NoError(t, err)

	user := datastore.User{Username: "alice"}
	require.NoError(t, store.DB.Create(&user).Error)
	predecessor, err := store.GetObservationByStableID(stableid.Compute("occ-1", "ds-key-1"))
	require.NoError(t, err)

	comment := datastore.ObservationComment{ObservationID: predecessor.ID, AuthorID: &user.ID, Text: "seen near the river"}
	require.NoError(t, store.DB.Create(&comment).Error)
	require.NoError(t, store.MarkObservationAsViewed(predecessor.ID, user.ID))
	viewedAt, err := store.FirstViewedAt(predecessor.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, viewedAt)

	second, err := runImport(t, store, nil, validRow("1b", "occ-1", 1311477))
	require.NoError(t, err)
	require.NotEqual(t, first.ImportID, second.ImportID)

	successor, err := store.GetObservationByStableID(stableid.Compute("occ-1", "ds-key-1"))
	require.NoError(t, err)
	assert.NotEqual(t, predecessor.ID, successor.ID)
	// First-seen continuity: inherited from the predecessor.
	assert.Equal(t, first.ImportID, successor.InitialDataImportID)
	assert.Equal(t, second.ImportID, successor.DataImportID)

	comments, err := store.CommentsForObservation(successor.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "seen near the river", comments[0].Text)

	migratedViewedAt, err := store.FirstViewedAt(successor.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, migratedViewedAt)
	assert.True(t, migratedViewedAt.Equal(*viewedAt))
}

func TestRunPurgeLeavesDisjointObservationSet(t *testing.T) {
	store := newTestStore(t)
	seedSpecies(t, store, "Vespa velutina", 1311477)

	_, err := runImport(t, store, nil, validRow("1", "occ-1", 1311477), validRow("2", "occ-2", 1311477))
	require.NoError(t, err)

	var beforeIDs []uint
	require.NoError(t, store.DB.Model(&datastore.Observation{}).Pluck("id", &beforeIDs).Error)
	require.Len(t, beforeIDs, 2)

	// The second snapshot only carries one of the two occurrences.
	second, err := runImport(t, store, nil, validRow("1b", "occ-1", 1311477))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Purged)
	assert.Equal(t, int64(1), second.Imported)

	var afterIDs []uint
	require.NoError(t, store.DB.Model(&datastore.Observation{}).Pluck("id", &afterIDs).Error)
	require.Len(t, afterIDs, 1)
	for _, before := range beforeIDs {
		assert.NotContains(t, afterIDs, before)
	}
}

func TestRunPrunesEmptyDatasetsAndRepairsAlerts(t *testing.T) {
	store := newTestStore(t)
	seedSpecies(t, store, "Vespa velutina", 1311477)

	rowA := validRow("1", "occ-1", 1311477)
	rowB := validRow("2", "occ-2", 1311477)
	rowB.DatasetKey = "ds-key-2"
	rowB.DatasetName = "Second dataset"

	_, err := runImport(t, store, nil, rowA, rowB)
	require.NoError(t, err)

	user := datastore.User{Username: "bob"}
	require.NoError(t, store.DB.Create(&user).Error)
	doomed, err := store.DatasetByKey("ds-key-2")
	require.NoError(t, err)
	alert := datastore.Alert{UserID: user.ID, Datasets: []datastore.Dataset{*doomed}}
	require.NoError(t, store.DB.Create(&alert).Error)

	// The next snapshot no longer references the second dataset.
	result, err := runImport(t, store, nil, validRow("1b", "occ-1", 1311477))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pruned)

	_, err = store.DatasetByKey("ds-key-2")
	assert.True(t, datastore.IsNotFound(err))

	alerts, err := store.AlertsForUser(user.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Empty(t, alerts[0].Datasets)
}

func TestRunAmbiguousIdentityIsNonFatal(t *testing.T) {
	store := newTestStore(t)
	species := seedSpecies(t, store, "Vespa velutina", 1311477)
	dataset := datastore.Dataset{Name: "Test dataset", GBIFDatasetKey: "ds-key-1"}
	require.NoError(t, store.CreateDataset(&dataset))

	// Two past batches both still carry the same identity, which the
	// one-batch-replaces-all policy should have prevented.
	stable := stableid.Compute("occ-1", "ds-key-1")
	lat, lon := 50.85, 4.35
	for i, importRow := range []datastore.DataImport{{Start: time.Now()}, {Start: time.Now()}} {
		require.NoError(t, store.CreateDataImport(&importRow))
		obs := datastore.Observation{
			GBIFID:              "old-" + string(rune('a'+i)),
			OccurrenceID:        "occ-1",
			StableID:            stable,
			SpeciesID:           species.ID,
			Latitude:            &lat,
			Longitude:           &lon,
			Date:                time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			DataImportID:        importRow.ID,
			InitialDataImportID: importRow.ID,
			DatasetID:           dataset.ID,
		}
		require.NoError(t, store.CreateObservation(&obs))
	}

	result, err := runImport(t, store, nil, validRow("1", "occ-1", 1311477))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ambiguous)
	assert.Equal(t, int64(1), result.Imported)

	batch, err := store.GetDataImport(result.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.AmbiguousCount)

	// The new row kept its own first-seen batch, nothing was migrated.
	obs, err := store.GetObservationByStableID(stable)
	require.NoError(t, err)
	assert.Equal(t, result.ImportID, obs.InitialDataImportID)
}

func TestRunEligibilityWindowAndAlertMatching(t *testing.T) {
	store := newTestStore(t)
	wanted := seedSpecies(t, store, "Vespa velutina", 1311477)
	seedSpecies(t, store, "Ludwigia grandiflora", 5420950)

	subscriber := datastore.User{Username: "carol", NotificationDelayDays: 365}
	require.NoError(t, store.DB.Create(&subscriber).Error)
	bystander := datastore.User{Username: "dave", NotificationDelayDays: 365}
	require.NoError(t, store.DB.Create(&bystander).Error)
	alert := datastore.Alert{UserID: subscriber.ID, Species: []datastore.Species{wanted}}
	require.NoError(t, store.DB.Create(&alert).Error)

	recentMatch := validRow("1", "occ-1", 1311477)
	recentOther := validRow("2", "occ-2", 5420950)
	tooOld := validRow("3", "occ-3", 1311477)
	tooOld.Year = time.Now().Year() - 3

	result, err := runImport(t, store, nil, recentMatch, recentOther, tooOld)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Imported)

	unseen, err := store.UnseenObservationsForAlert(&datastore.Alert{UserID: subscriber.ID})
	require.NoError(t, err)
	require.Len(t, unseen, 1)
	assert.Equal(t, stableid.Compute("occ-1", "ds-key-1"), unseen[0].StableID)

	// A user without alerts never gets a backlog.
	bystanderUnseen, err := store.UnseenObservationsForAlert(&datastore.Alert{UserID: bystander.ID})
	require.NoError(t, err)
	assert.Empty(t, bystanderUnseen)
}

func TestRunMigratedIdentityKeepsUnseenNotDuplicated(t *testing.T) {
	store := newTestStore(t)
	wanted := seedSpecies(t, store, "Vespa velutina", 1311477)
	user := datastore.User{Username: "erin", NotificationDelayDays: 365}
	require.NoError(t, store.DB.Create(&user).Error)
	alert := datastore.Alert{UserID: user.ID, Species: []datastore.Species{wanted}}
	require.NoError(t, store.DB.Create(&alert).Error)

	_, err := runImport(t, store, nil, validRow("1", "occ-1", 1311477))
	require.NoError(t, err)

	// Reimporting the same occurrence migrates the marker instead of
	// creating a second one.
	_, err = runImport(t, store, nil, validRow("1b", "occ-1", 1311477))
	require.NoError(t, err)

	var markerCount int64
	require.NoError(t, store.DB.Model(&datastore.ObservationUnseen{}).Count(&markerCount).Error)
	assert.Equal(t, int64(1), markerCount)
}

func TestRunDatasetNameFallbackToAPI(t *testing.T) {
	store := newTestStore(t)
	seedSpecies(t, store, "Vespa velutina", 1311477)

	api := &fakeDatasetAPI{titles: map[string]string{"ds-key-1": "Resolved from API"}}
	rowA := validRow("1", "occ-1", 1311477)
	rowA.DatasetName = ""
	rowB := validRow("2", "occ-2", 1311477)
	rowB.DatasetName = ""

	_, err := runImport(t, store, api, rowA, rowB)
	require.NoError(t, err)

	dataset, err := store.DatasetByKey("ds-key-1")
	require.NoError(t, err)
	assert.Equal(t, "Resolved from API", dataset.Name)
	// The per-run registry cache keeps it to one lookup.
	assert.Equal(t, 1, api.calls)
}

func TestRunEmptySpeciesTableAborts(t *testing.T) {
	store := newTestStore(t)

	_, err := runImport(t, store, nil, validRow("1", "occ-1", 1311477))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
}

func TestSkipReasonOf(t *testing.T) {
	reason, ok := SkipReasonOf(&RowSkippedError{Reason: SkipNoYear})
	assert.True(t, ok)
	assert.Equal(t, SkipNoYear, reason)

	_, ok = SkipReasonOf(io.EOF)
	assert.False(t, ok)
}
