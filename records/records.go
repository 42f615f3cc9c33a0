// Package records exposes the person, vehicle, wanted and case lookup
// services the query dispatcher depends on. The channel core treats these
// as opaque collaborators; Catalog is a repository-backed implementation
// used by the server and seeded from a JSON fixture in staging.
package records

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// Person is a minimal person record as seen by the field-query core.
type Person struct {
	NIN               string `json:"nin"`
	FullName          string `json:"full_name"`
	Gender            string `json:"gender,omitempty"`
	DateOfBirth       string `json:"date_of_birth,omitempty"`
	DeceasedOrMissing bool   `json:"deceased_or_missing"`
}

// WantedRecord is an active or historical wanted-status entry.
type WantedRecord struct {
	NIN         string    `json:"nin"`
	DangerLevel string    `json:"danger_level"` // low, medium, high, extreme
	Charges     []string  `json:"charges"`
	WarrantNo   string    `json:"warrant_no"`
	Active      bool      `json:"active"`
	IssuedAt    time.Time `json:"issued_at"`
}

// CaseSeverity values used for background risk derivation.
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
)

// CaseRef is a reference to a case involving a person.
type CaseRef struct {
	CaseNo   string `json:"case_no"`
	NIN      string `json:"nin"`
	Severity string `json:"severity"`
	Title    string `json:"title,omitempty"`
}

// VehicleStatus is the registration status of a vehicle.
type VehicleStatus string

const (
	VehicleClean     VehicleStatus = "clean"
	VehicleStolen    VehicleStatus = "stolen"
	VehicleImpounded VehicleStatus = "impounded"
	VehicleRecovered VehicleStatus = "recovered"
)

// Vehicle is a registered vehicle record.
type Vehicle struct {
	Plate     string        `json:"plate"`
	Make      string        `json:"make,omitempty"`
	Model     string        `json:"model,omitempty"`
	Color     string        `json:"color,omitempty"`
	OwnerName string        `json:"owner_name,omitempty"`
	Status    VehicleStatus `json:"status"`
	StolenAt  time.Time     `json:"stolen_at,omitempty"`
}

// PersonLookup finds persons by national ID number.
type PersonLookup interface {
	FindPersonByNIN(ctx context.Context, nin string) (*Person, error)
}

// WantedLookup finds the active wanted record for a person, if any.
type WantedLookup interface {
	ActiveWanted(ctx context.Context, nin string) (*WantedRecord, error)
}

// CaseLookup lists case references involving a person.
type CaseLookup interface {
	CasesByNIN(ctx context.Context, nin string) ([]CaseRef, error)
}

// VehicleLookup finds vehicles by normalized number plate.
type VehicleLookup interface {
	FindVehicleByPlate(ctx context.Context, plate string) (*Vehicle, error)
}

// NormalizePlate uppercases a plate and strips whitespace so that user
// input variants match the stored form.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), ""))
}
