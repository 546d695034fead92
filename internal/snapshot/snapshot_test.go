package snapshot

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHeader = "gbifID\toccurrenceID\toccurrenceStatus\ttaxonKey\tacceptedTaxonKey\tspeciesKey\tyear\tmonth\tday\tdecimalLatitude\tdecimalLongitude\tdatasetKey\tdatasetName\tindividualCount\tlocality\tmunicipality\tbasisOfRecord\trecordedBy\tcoordinateUncertaintyInMeters\treferences"

func readerFor(t *testing.T, rows ...string) *CSVReader {
	t.Helper()
	content := sampleHeader + "\n" + strings.Join(rows, "\n")
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader(content)), "dl-0001")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close() })
	return reader
}

func TestNextDecodesFullRow(t *testing.T) {
	reader := readerFor(t,
		"123\tBR:IFBL: 00494798\tPRESENT\t1311477\t1311477\t1311477\t2024\t6\t15\t50.85\t4.35\tds-key\tSome dataset\t3\tForest edge\tBrussels\tHUMAN_OBSERVATION\tJ. Smith\t25.5\thttps://example.org/obs/123")

	row, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "123", row.GBIFID)
	assert.Equal(t, "BR:IFBL: 00494798", row.OccurrenceID)
	assert.Equal(t, "PRESENT", row.OccurrenceStatus)
	assert.Equal(t, 1311477, row.TaxonKey)
	assert.Equal(t, 2024, row.Year)
	assert.Equal(t, 6, row.Month)
	assert.Equal(t, 15, row.Day)
	require.NotNil(t, row.DecimalLatitude)
	assert.InDelta(t, 50.85, *row.DecimalLatitude, 0.0001)
	require.NotNil(t, row.DecimalLongitude)
	assert.InDelta(t, 4.35, *row.DecimalLongitude, 0.0001)
	assert.Equal(t, "ds-key", row.DatasetKey)
	require.NotNil(t, row.IndividualCount)
	assert.Equal(t, 3, *row.IndividualCount)
	require.NotNil(t, row.CoordinateUncertaintyInMeters)
	assert.InDelta(t, 25.5, *row.CoordinateUncertaintyInMeters, 0.0001)
	assert.Equal(t, "J. Smith", row.RecordedBy)
}

func TestNextEmptyColumnsStayZeroOrNil(t *testing.T) {
	reader := readerFor(t,
		"124\tocc-1\tPRESENT\t1311477\t\t\t2024\t\t\t\t\tds-key\t\t\t\t\t\t\t\t")

	row, err := reader.Next()
	require.NoError(t, err)
	assert.Zero(t, row.Month)
	assert.Zero(t, row.Day)
	assert.Zero(t, row.AcceptedTaxonKey)
	assert.Nil(t, row.DecimalLatitude)
	assert.Nil(t, row.DecimalLongitude)
	assert.Nil(t, row.IndividualCount)
	assert.Nil(t, row.CoordinateUncertaintyInMeters)
	assert.Empty(t, row.DatasetName)
}

func TestNextReturnsEOF(t *testing.T) {
	reader := readerFor(t,
		"123\tocc-1\tPRESENT\t1311477\t\t\t2024\t6\t15\t50.85\t4.35\tds-key\tname\t\t\t\t\t\t\t")

	_, err := reader.Next()
	require.NoError(t, err)
	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDownloadID(t *testing.T) {
	reader := readerFor(t)
	assert.Equal(t, "dl-0001", reader.DownloadID())
}
