package ussd

import (
	"fmt"
	"strings"

	"github.com/jmensah/fieldcheck/dispatch"
	"github.com/jmensah/fieldcheck/querylog"
)

// USSD screens are tiny; every message here has to survive a 182-character
// feature-phone display.
const (
	menuText = "Field Check\n" +
		"1. Wanted person check\n" +
		"2. Missing person check\n" +
		"3. Background check\n" +
		"4. Vehicle check\n" +
		"5. My query stats"

	msgPINPrompt     = "Enter your 4-digit Quick PIN"
	msgInvalidChoice = "Invalid option. Dial again and choose 1-5."
	msgInvalidPIN    = "Invalid PIN. Dial again to retry."
	msgNotEnrolled   = "This phone number is not enrolled for field checks."
	msgInternalError = "Error performing check, please try again."
)

// renderResult turns a dispatch result into terminal USSD text.
func renderResult(res *dispatch.Result) string {
	if !res.Success {
		return msgInternalError
	}
	switch res.Summary {
	case dispatch.SummaryNotFound:
		return "NOT FOUND\nNo record matches that search."
	case dispatch.SummaryWanted:
		return renderWanted(res.Data.(*dispatch.WantedData))
	case dispatch.SummaryNotWanted:
		d := res.Data.(*dispatch.WantedData)
		return fmt.Sprintf("NOT WANTED\n%s\nNo active warrant on file.", d.Person.FullName)
	case dispatch.SummaryMissing:
		d := res.Data.(*dispatch.MissingData)
		return fmt.Sprintf("MISSING\n%s is flagged deceased or missing. Contact your station.", d.Person.FullName)
	case dispatch.SummaryClear, dispatch.SummaryHasRecord:
		if d, ok := res.Data.(*dispatch.BackgroundData); ok {
			return renderBackground(d)
		}
		d := res.Data.(*dispatch.MissingData)
		return fmt.Sprintf("CLEAR\n%s has no missing-person flag.", d.Person.FullName)
	case dispatch.SummaryClean, dispatch.SummaryStolen,
		dispatch.SummaryImpounded, dispatch.SummaryRecovered:
		return renderVehicle(res.Summary, res.Data.(*dispatch.VehicleData))
	case dispatch.SummaryStats:
		return renderStats(res.Data.(*querylog.OfficerStats))
	default:
		return msgInternalError
	}
}

func renderWanted(d *dispatch.WantedData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "WANTED\n%s\nDanger: %s", d.Person.FullName, strings.ToUpper(d.Wanted.DangerLevel))
	if d.Wanted.WarrantNo != "" {
		fmt.Fprintf(&b, "\nWarrant %s", d.Wanted.WarrantNo)
	}
	if len(d.Wanted.Charges) > 0 {
		fmt.Fprintf(&b, "\n%s", strings.Join(d.Wanted.Charges, ", "))
	}
	return b.String()
}

func renderBackground(d *dispatch.BackgroundData) string {
	if d.Verdict == "clear" {
		return fmt.Sprintf("CLEAR\n%s\nNo records on file.", d.Person.FullName)
	}
	return fmt.Sprintf("HAS RECORD\n%s\nCases: %d\nRisk: %s",
		d.Person.FullName, d.CaseCount, strings.ToUpper(d.RiskLevel))
}

func renderVehicle(summary string, d *dispatch.VehicleData) string {
	v := d.Vehicle
	switch summary {
	case dispatch.SummaryStolen:
		return fmt.Sprintf("STOLEN\n%s %s %s\nReported %d days ago. Do not release.",
			v.Plate, v.Make, v.Model, d.DaysSinceStolen)
	case dispatch.SummaryImpounded:
		return fmt.Sprintf("IMPOUNDED\n%s is currently impounded.", v.Plate)
	case dispatch.SummaryRecovered:
		return fmt.Sprintf("RECOVERED\n%s was recovered. Verify with your station.", v.Plate)
	default:
		return fmt.Sprintf("CLEAN\n%s\nOwner: %s\nNo adverse flags.", v.Plate, v.OwnerName)
	}
}

func renderStats(s *querylog.OfficerStats) string {
	return fmt.Sprintf("Your queries\nToday: %d\nWeek: %d\nMonth: %d\nTotal: %d\nSuccess: %.0f%%",
		s.Today, s.Week, s.Month, s.Total, s.SuccessRate*100)
}
