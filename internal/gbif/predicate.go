package gbif

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
)

// The serialized predicate is an external contract: the occurrence download
// service consumes it and operators compare it between import batches. Field
// order and value types must stay exactly as emitted here.

type predicateClause struct {
	Type   string   `json:"type"`
	Key    string   `json:"key"`
	Value  any      `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

type andPredicate struct {
	Type       string            `json:"type"`
	Predicates []predicateClause `json:"predicates"`
}

type downloadRequest struct {
	Predicate andPredicate `json:"predicate"`
}

// BuildDownloadPredicate serializes the occurrence download query for one
// country and the registered species list. Taxon keys are rendered as strings
// in the order the species are given. The YEAR clause is only present when
// minYear is positive.
func BuildDownloadPredicate(countryCode string, minYear int, species []datastore.Species) (string, error) {
	taxonKeys := make([]string, len(species))
	for i := range species {
		taxonKeys[i] = strconv.Itoa(species[i].GBIFTaxonKey)
	}

	clauses := []predicateClause{
		{Type: "equals", Key: "COUNTRY", Value: countryCode},
		{Type: "in", Key: "TAXON_KEY", Values: taxonKeys},
		{Type: "equals", Key: "OCCURRENCE_STATUS", Value: "present"},
	}
	if minYear > 0 {
		clauses = append(clauses, predicateClause{
			Type: "greaterThanOrEquals", Key: "YEAR", Value: minYear,
		})
	}

	payload, err := json.Marshal(downloadRequest{
		Predicate: andPredicate{Type: "and", Predicates: clauses},
	})
	if err != nil {
		return "", fmt.Errorf("serializing download predicate: %w", err)
	}
	return string(payload), nil
}
