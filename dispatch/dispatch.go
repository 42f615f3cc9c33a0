// Package dispatch executes field checks on behalf of an authenticated
// officer. It is the channel-agnostic core shared by the USSD router and
// the WhatsApp machine: both hand over an officer, a query type and a
// search term, and render the returned Result into channel-specific text.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmensah/fieldcheck/querylog"
	"github.com/jmensah/fieldcheck/records"
	"github.com/jmensah/fieldcheck/session"
)

// Result summary codes recorded in the query log.
const (
	SummaryWanted    = "WANTED"
	SummaryNotWanted = "NOT_WANTED"
	SummaryMissing   = "MISSING"
	SummaryClear     = "CLEAR"
	SummaryHasRecord = "HAS_RECORD"
	SummaryNotFound  = "NOT_FOUND"
	SummaryClean     = "CLEAN"
	SummaryStolen    = "STOLEN"
	SummaryImpounded = "IMPOUNDED"
	SummaryRecovered = "RECOVERED"
	SummaryStats     = "STATS"
	SummaryError     = "ERROR"
)

// Error codes carried on failed results.
const (
	CodeLookupFailed = "lookup_failed"
	CodeUnknownQuery = "unknown_query"
)

// Risk levels derived by the background check.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// Result is the stable contract rendered by every channel adapter.
type Result struct {
	Success   bool              `json:"success"`
	CheckType session.QueryType `json:"check_type"`
	Timestamp time.Time         `json:"timestamp"`
	OfficerID string            `json:"officer_id"`
	Summary   string            `json:"summary"`
	Data      any               `json:"data,omitempty"`
	ErrorCode string            `json:"error_code,omitempty"`
	Err       string            `json:"error,omitempty"`
}

// WantedData is the payload of a wanted check. Wanted is nil when the
// person exists but carries no active warrant.
type WantedData struct {
	Person *records.Person       `json:"person"`
	Wanted *records.WantedRecord `json:"wanted,omitempty"`
}

// MissingData is the payload of a missing-person check.
type MissingData struct {
	Person  *records.Person `json:"person"`
	Missing bool            `json:"missing"`
}

// BackgroundData is the payload of a background check.
type BackgroundData struct {
	Person    *records.Person `json:"person"`
	CaseCount int             `json:"case_count"`
	Wanted    bool            `json:"wanted"`
	Missing   bool            `json:"missing"`
	Verdict   string          `json:"verdict"` // "clear" or "has_record"
	RiskLevel string          `json:"risk_level"`
}

// VehicleData is the payload of a vehicle check.
type VehicleData struct {
	Vehicle         *records.Vehicle `json:"vehicle"`
	DaysSinceStolen int              `json:"days_since_stolen,omitempty"`
}

// StatsSource aggregates an officer's own query history.
type StatsSource interface {
	Stats(officerID string, now time.Time) (*querylog.OfficerStats, error)
}

// Dispatcher runs the five field checks against the record collaborators.
type Dispatcher struct {
	persons  records.PersonLookup
	wanted   records.WantedLookup
	cases    records.CaseLookup
	vehicles records.VehicleLookup
	stats    StatsSource
	log      querylog.Store
	logger   *slog.Logger
	now      func() time.Time
}

// Deps are the collaborators a Dispatcher needs.
type Deps struct {
	Persons  records.PersonLookup
	Wanted   records.WantedLookup
	Cases    records.CaseLookup
	Vehicles records.VehicleLookup
	Stats    StatsSource
	Log      querylog.Store
	Logger   *slog.Logger
}

// New creates a dispatcher.
func New(d Deps) *Dispatcher {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		persons:  d.Persons,
		wanted:   d.Wanted,
		cases:    d.Cases,
		vehicles: d.Vehicles,
		stats:    d.Stats,
		log:      d.Log,
		logger:   logger,
		now:      time.Now,
	}
}

// Dispatch runs the check for the given query type. Every call, whatever
// the outcome, produces exactly one query-log entry.
func (d *Dispatcher) Dispatch(ctx context.Context, officerID string, qt session.QueryType, term string, ch session.Channel) *Result {
	start := d.now()
	var res *Result
	switch qt {
	case session.QueryWanted:
		res = d.checkWanted(ctx, term)
	case session.QueryMissing:
		res = d.checkMissing(ctx, term)
	case session.QueryBackground:
		res = d.checkBackground(ctx, term)
	case session.QueryVehicle:
		res = d.checkVehicle(ctx, term)
	case session.QueryStats:
		res = d.checkStats(officerID)
	default:
		res = &Result{Summary: SummaryError, ErrorCode: CodeUnknownQuery, Err: "unknown query type"}
	}
	res.CheckType = qt
	res.OfficerID = officerID
	res.Timestamp = start

	// Best-effort audit write: a failed log append must never mask the
	// result the officer is waiting on.
	entry := querylog.Entry{
		OfficerID:     officerID,
		Channel:       ch,
		QueryType:     qt,
		SearchTerm:    term,
		ResultSummary: res.Summary,
		Success:       res.Success,
		DurationMS:    d.now().Sub(start).Milliseconds(),
		CreatedAt:     start,
	}
	if err := d.log.Append(entry); err != nil {
		d.logger.Warn("query log append failed",
			"officer_id", officerID, "query_type", qt, "error", err)
	}
	return res
}

func (d *Dispatcher) checkWanted(ctx context.Context, nin string) *Result {
	p, err := d.persons.FindPersonByNIN(ctx, nin)
	if err != nil {
		return lookupResult(err)
	}
	w, err := d.wanted.ActiveWanted(ctx, p.NIN)
	switch {
	case err == nil:
		return &Result{Success: true, Summary: SummaryWanted, Data: &WantedData{Person: p, Wanted: w}}
	case isNotFound(err):
		return &Result{Success: true, Summary: SummaryNotWanted, Data: &WantedData{Person: p}}
	default:
		return lookupResult(err)
	}
}

func (d *Dispatcher) checkMissing(ctx context.Context, nin string) *Result {
	p, err := d.persons.FindPersonByNIN(ctx, nin)
	if err != nil {
		return lookupResult(err)
	}
	summary := SummaryClear
	if p.DeceasedOrMissing {
		summary = SummaryMissing
	}
	return &Result{
		Success: true,
		Summary: summary,
		Data:    &MissingData{Person: p, Missing: p.DeceasedOrMissing},
	}
}

func (d *Dispatcher) checkBackground(ctx context.Context, nin string) *Result {
	p, err := d.persons.FindPersonByNIN(ctx, nin)
	if err != nil {
		return lookupResult(err)
	}
	cases, err := d.cases.CasesByNIN(ctx, p.NIN)
	if err != nil {
		return lookupResult(err)
	}
	wanted := false
	if _, err := d.wanted.ActiveWanted(ctx, p.NIN); err == nil {
		wanted = true
	} else if !isNotFound(err) {
		return lookupResult(err)
	}

	data := &BackgroundData{
		Person:    p,
		CaseCount: len(cases),
		Wanted:    wanted,
		Missing:   p.DeceasedOrMissing,
		Verdict:   "clear",
		RiskLevel: deriveRisk(cases, wanted),
	}
	summary := SummaryClear
	if len(cases) > 0 || wanted || p.DeceasedOrMissing {
		data.Verdict = "has_record"
		summary = SummaryHasRecord
	}
	return &Result{Success: true, Summary: summary, Data: data}
}

// deriveRisk collapses case severities and wanted status into a coarse
// three-level risk verdict.
func deriveRisk(cases []records.CaseRef, wanted bool) string {
	if wanted {
		return RiskHigh
	}
	risk := RiskLow
	for _, c := range cases {
		switch c.Severity {
		case records.SeverityCritical:
			return RiskHigh
		case records.SeverityMajor:
			risk = RiskMedium
		}
	}
	return risk
}

func (d *Dispatcher) checkVehicle(ctx context.Context, plate string) *Result {
	v, err := d.vehicles.FindVehicleByPlate(ctx, plate)
	if err != nil {
		return lookupResult(err)
	}
	data := &VehicleData{Vehicle: v}
	var summary string
	switch v.Status {
	case records.VehicleStolen:
		summary = SummaryStolen
		if !v.StolenAt.IsZero() {
			data.DaysSinceStolen = int(d.now().Sub(v.StolenAt).Hours() / 24)
		}
	case records.VehicleImpounded:
		summary = SummaryImpounded
	case records.VehicleRecovered:
		summary = SummaryRecovered
	default:
		summary = SummaryClean
	}
	return &Result{Success: true, Summary: summary, Data: data}
}

func (d *Dispatcher) checkStats(officerID string) *Result {
	stats, err := d.stats.Stats(officerID, d.now())
	if err != nil {
		return lookupResult(err)
	}
	return &Result{Success: true, Summary: SummaryStats, Data: stats}
}

func isNotFound(err error) bool {
	return errors.Is(err, records.ErrNotFound)
}

// lookupResult maps a collaborator error to a result. The user-facing
// message stays generic; the underlying error goes to the query log only
// as the summary code.
func lookupResult(err error) *Result {
	if isNotFound(err) {
		return &Result{Success: true, Summary: SummaryNotFound}
	}
	return &Result{
		Success:   false,
		Summary:   SummaryError,
		ErrorCode: CodeLookupFailed,
		Err:       "error performing check, please try again",
	}
}
