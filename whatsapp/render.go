package whatsapp

import (
	"fmt"
	"strings"

	"github.com/jmensah/fieldcheck/dispatch"
	"github.com/jmensah/fieldcheck/querylog"
	"github.com/jmensah/fieldcheck/ratelimit"
)

const (
	msgMenuHeader      = "Field Check: choose a query type"
	msgPINPrompt       = "Enter your 4-digit Quick PIN."
	msgInvalidChoice   = "That is not one of the menu options."
	msgNotEnrolled     = "This number is not enrolled for field checks. Contact your station administrator."
	msgTooManyAttempts = "Too many failed attempts. Returning to the main menu."
	msgInternalError   = "Error performing check, please try again."
)

func invalidPINMessage(remaining int) string {
	if remaining == 1 {
		return "Invalid PIN. 1 attempt remaining."
	}
	return fmt.Sprintf("Invalid PIN. %d attempts remaining.", remaining)
}

func rateLimitMessage(d ratelimit.Decision) string {
	return fmt.Sprintf("You have reached your daily limit of %d queries. The limit resets at %s.",
		d.Limit, d.ResetAt.Format("15:04"))
}

// renderResult turns a dispatch result into chat text. WhatsApp has no
// hard length ceiling, so results here carry more detail than USSD's.
func renderResult(res *dispatch.Result) string {
	if !res.Success {
		return msgInternalError
	}
	switch res.Summary {
	case dispatch.SummaryNotFound:
		return "NOT FOUND: no record matches that search."
	case dispatch.SummaryWanted:
		d := res.Data.(*dispatch.WantedData)
		var b strings.Builder
		fmt.Fprintf(&b, "*WANTED*\n%s\nDanger level: %s", d.Person.FullName, strings.ToUpper(d.Wanted.DangerLevel))
		if d.Wanted.WarrantNo != "" {
			fmt.Fprintf(&b, "\nWarrant: %s", d.Wanted.WarrantNo)
		}
		if len(d.Wanted.Charges) > 0 {
			fmt.Fprintf(&b, "\nCharges: %s", strings.Join(d.Wanted.Charges, ", "))
		}
		b.WriteString("\nApproach with caution and report to your station.")
		return b.String()
	case dispatch.SummaryNotWanted:
		d := res.Data.(*dispatch.WantedData)
		return fmt.Sprintf("NOT WANTED\n%s has no active warrant on file.", d.Person.FullName)
	case dispatch.SummaryMissing:
		d := res.Data.(*dispatch.MissingData)
		return fmt.Sprintf("*MISSING*\n%s is flagged deceased or missing. Contact your station before proceeding.", d.Person.FullName)
	case dispatch.SummaryClear, dispatch.SummaryHasRecord:
		if d, ok := res.Data.(*dispatch.BackgroundData); ok {
			if d.Verdict == "clear" {
				return fmt.Sprintf("CLEAR\n%s has no records on file.", d.Person.FullName)
			}
			return fmt.Sprintf("*HAS RECORD*\n%s\nCases on file: %d\nRisk level: %s",
				d.Person.FullName, d.CaseCount, strings.ToUpper(d.RiskLevel))
		}
		d := res.Data.(*dispatch.MissingData)
		return fmt.Sprintf("CLEAR\n%s has no missing-person flag.", d.Person.FullName)
	case dispatch.SummaryStolen:
		d := res.Data.(*dispatch.VehicleData)
		v := d.Vehicle
		return fmt.Sprintf("*STOLEN*\n%s %s %s (%s)\nReported stolen %d days ago. Do not release the vehicle.",
			v.Plate, v.Make, v.Model, v.Color, d.DaysSinceStolen)
	case dispatch.SummaryImpounded:
		d := res.Data.(*dispatch.VehicleData)
		return fmt.Sprintf("IMPOUNDED\n%s is currently impounded.", d.Vehicle.Plate)
	case dispatch.SummaryRecovered:
		d := res.Data.(*dispatch.VehicleData)
		return fmt.Sprintf("RECOVERED\n%s was reported stolen and has been recovered. Verify with your station.", d.Vehicle.Plate)
	case dispatch.SummaryClean:
		d := res.Data.(*dispatch.VehicleData)
		return fmt.Sprintf("CLEAN\n%s\nOwner: %s\nNo adverse flags.", d.Vehicle.Plate, d.Vehicle.OwnerName)
	case dispatch.SummaryStats:
		s := res.Data.(*querylog.OfficerStats)
		var b strings.Builder
		fmt.Fprintf(&b, "Your query stats\nToday: %d\nThis week: %d\nThis month: %d\nTotal: %d\nSuccess rate: %.0f%%",
			s.Today, s.Week, s.Month, s.Total, s.SuccessRate*100)
		return b.String()
	default:
		return msgInternalError
	}
}
