package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/parcelbook/internal/skiptrace"
)

// SkipTraceHeader is the first row of a skip-trace session export.
var SkipTraceHeader = []string{
	"Property_ID",
	"Status",
	"Found_Name",
	"Mobiles",
	"Landlines",
	"Emails",
	"Error",
}

// WriteSkipTraceCSV writes one row per result. Multiple phone numbers or
// emails share a cell, separated by "; ".
func WriteSkipTraceCSV(w io.Writer, results []skiptrace.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SkipTraceHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range results {
		var mobiles, landlines, emails []string
		if r.Contact != nil {
			mobiles, landlines, emails = r.Contact.Mobiles, r.Contact.Landlines, r.Contact.Emails
		}
		row := []string{
			strconv.FormatInt(r.PropertyID, 10),
			r.Status,
			r.FoundPersonName,
			strings.Join(mobiles, "; "),
			strings.Join(landlines, "; "),
			strings.Join(emails, "; "),
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for property %d: %w", r.PropertyID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SkipTraceFilename names the export of session letter taken at t, e.g. skiptrace-A-2024-05-01.csv.
func SkipTraceFilename(letter string, t time.Time) string {
	return "skiptrace-" + letter + "-" + t.Format("2006-01-02") + ".csv"
}
