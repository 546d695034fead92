// Package snapshot reads occurrence snapshot exports. The import pipeline
// consumes rows one at a time so arbitrarily large exports stream in constant
// memory.
package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"
)

// Row is one occurrence record as exported upstream. Empty columns decode to
// zero values, pointer fields stay nil so the mapper can tell "absent" from
// "zero".
type Row struct {
	GBIFID                        string   `csv:"gbifID"`
	OccurrenceID                  string   `csv:"occurrenceID"`
	OccurrenceStatus              string   `csv:"occurrenceStatus"`
	TaxonKey                      int      `csv:"taxonKey"`
	AcceptedTaxonKey              int      `csv:"acceptedTaxonKey"`
	SpeciesKey                    int      `csv:"speciesKey"`
	Year                          int      `csv:"year"`
	Month                         int      `csv:"month"`
	Day                           int      `csv:"day"`
	DecimalLatitude               *float64 `csv:"decimalLatitude"`
	DecimalLongitude              *float64 `csv:"decimalLongitude"`
	DatasetKey                    string   `csv:"datasetKey"`
	DatasetName                   string   `csv:"datasetName"`
	IndividualCount               *int     `csv:"individualCount"`
	Locality                      string   `csv:"locality"`
	Municipality                  string   `csv:"municipality"`
	BasisOfRecord                 string   `csv:"basisOfRecord"`
	RecordedBy                    string   `csv:"recordedBy"`
	CoordinateUncertaintyInMeters *float64 `csv:"coordinateUncertaintyInMeters"`
	References                    string   `csv:"references"`
}

// Reader streams rows out of a snapshot. Next returns io.EOF when the
// snapshot is exhausted.
type Reader interface {
	Next() (*Row, error)
	DownloadID() string
	Close() error
}

// CSVReader reads tab-separated snapshot exports, the format the occurrence
// download service produces.
type CSVReader struct {
	decoder    *csvutil.Decoder
	closer     io.Closer
	downloadID string
}

// NewCSVReader wraps an open snapshot stream. The download identifier is
// supplied by the caller because a plain CSV export does not carry one.
func NewCSVReader(r io.ReadCloser, downloadID string) (*CSVReader, error) {
	csvReader := csv.NewReader(r)
	csvReader.Comma = '\t'
	csvReader.LazyQuotes = true

	decoder, err := csvutil.NewDecoder(csvReader)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot header: %w", err)
	}
	return &CSVReader{decoder: decoder, closer: r, downloadID: downloadID}, nil
}

// OpenCSVFile opens a snapshot export on disk.
func OpenCSVFile(path, downloadID string) (*CSVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	reader, err := NewCSVReader(file, downloadID)
	if err != nil {
		file.Close()
		return nil, err
	}
	return reader, nil
}

// Next decodes the next row. Returns io.EOF at the end of the snapshot.
func (r *CSVReader) Next() (*Row, error) {
	var row Row
	if err := r.decoder.Decode(&row); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decoding snapshot row: %w", err)
	}
	return &row, nil
}

// DownloadID returns the external download identifier of this snapshot.
func (r *CSVReader) DownloadID() string {
	return r.downloadID
}

func (r *CSVReader) Close() error {
	return r.closer.Close()
}
