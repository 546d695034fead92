package datastore

import "fmt"

// GetAllSpecies returns every known species, in primary key order. The
// download predicate builder relies on this ordering being stable.
func (ds *DataStore) GetAllSpecies() ([]Species, error) {
	var species []Species
	if err := ds.DB.Order("id").Find(&species).Error; err != nil {
		return nil, fmt.Errorf("getting all species: %w", err)
	}
	return species, nil
}

// SpeciesByTaxonKey returns the full species table keyed by GBIF taxon key,
// for row mapping without per-row lookups.
func (ds *DataStore) SpeciesByTaxonKey() (map[int]Species, error) {
	species, err := ds.GetAllSpecies()
	if err != nil {
		return nil, err
	}
	byKey := make(map[int]Species, len(species))
	for _, s := range species {
		byKey[s.GBIFTaxonKey] = s
	}
	return byKey, nil
}

// CreateSpecies inserts a new species reference entry.
func (ds *DataStore) CreateSpecies(species *Species) error {
	if err := ds.DB.Create(species).Error; err != nil {
		return fmt.Errorf("creating species %q: %w", species.Name, err)
	}
	return nil
}
