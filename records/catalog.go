package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jmensah/fieldcheck/storage"
)

const (
	namespace   = "records"
	personType  = "PERSON"
	wantedType  = "WANTED"
	caseType    = "CASE"
	vehicleType = "VEHICLE"
)

// Catalog implements all four lookup interfaces on a storage.Repository.
type Catalog struct {
	repo storage.Repository
}

var (
	_ PersonLookup  = (*Catalog)(nil)
	_ WantedLookup  = (*Catalog)(nil)
	_ CaseLookup    = (*Catalog)(nil)
	_ VehicleLookup = (*Catalog)(nil)
)

// NewCatalog creates a record catalog on the given repository.
func NewCatalog(repo storage.Repository) *Catalog {
	return &Catalog{repo: repo}
}

func notFoundErr(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNamespaceNotFound)
}

func (c *Catalog) FindPersonByNIN(ctx context.Context, nin string) (*Person, error) {
	var p Person
	if err := storage.GetJSON(c.repo, namespace, personType, strings.ToUpper(strings.TrimSpace(nin)), &p); err != nil {
		if notFoundErr(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (c *Catalog) ActiveWanted(ctx context.Context, nin string) (*WantedRecord, error) {
	var w WantedRecord
	if err := storage.GetJSON(c.repo, namespace, wantedType, strings.ToUpper(strings.TrimSpace(nin)), &w); err != nil {
		if notFoundErr(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !w.Active {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (c *Catalog) CasesByNIN(ctx context.Context, nin string) ([]CaseRef, error) {
	ids, err := c.repo.List(namespace, caseType)
	if err != nil {
		return nil, err
	}
	key := strings.ToUpper(strings.TrimSpace(nin))
	prefix := key + ":"
	var cases []CaseRef
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		var cr CaseRef
		if err := storage.GetJSON(c.repo, namespace, caseType, id, &cr); err != nil {
			continue
		}
		cases = append(cases, cr)
	}
	return cases, nil
}

func (c *Catalog) FindVehicleByPlate(ctx context.Context, plate string) (*Vehicle, error) {
	var v Vehicle
	if err := storage.GetJSON(c.repo, namespace, vehicleType, NormalizePlate(plate), &v); err != nil {
		if notFoundErr(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// AddPerson stores or replaces a person record keyed by NIN.
func (c *Catalog) AddPerson(p Person) error {
	return storage.PutJSON(c.repo, namespace, personType, strings.ToUpper(p.NIN), p)
}

// AddWanted stores or replaces the wanted record for a person.
func (c *Catalog) AddWanted(w WantedRecord) error {
	return storage.PutJSON(c.repo, namespace, wantedType, strings.ToUpper(w.NIN), w)
}

// AddCase stores a case reference, keyed so that per-person listing is a
// prefix scan.
func (c *Catalog) AddCase(cr CaseRef) error {
	id := strings.ToUpper(cr.NIN) + ":" + cr.CaseNo
	return storage.PutJSON(c.repo, namespace, caseType, id, cr)
}

// AddVehicle stores or replaces a vehicle record keyed by normalized plate.
func (c *Catalog) AddVehicle(v Vehicle) error {
	v.Plate = NormalizePlate(v.Plate)
	return storage.PutJSON(c.repo, namespace, vehicleType, v.Plate, v)
}

// SeedFile is the JSON fixture format loaded by `fieldcheck seed`.
type SeedFile struct {
	Persons  []Person       `json:"persons"`
	Wanted   []WantedRecord `json:"wanted"`
	Cases    []CaseRef      `json:"cases"`
	Vehicles []Vehicle      `json:"vehicles"`
}

// LoadSeedFile reads a fixture file and inserts every record. Intended for
// demos and staging only; production record stores are upstream systems.
func (c *Catalog) LoadSeedFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}
	var seed SeedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("parsing seed file: %w", err)
	}
	n := 0
	for _, p := range seed.Persons {
		if err := c.AddPerson(p); err != nil {
			return n, err
		}
		n++
	}
	for _, w := range seed.Wanted {
		if err := c.AddWanted(w); err != nil {
			return n, err
		}
		n++
	}
	for _, cr := range seed.Cases {
		if err := c.AddCase(cr); err != nil {
			return n, err
		}
		n++
	}
	for _, v := range seed.Vehicles {
		if err := c.AddVehicle(v); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
