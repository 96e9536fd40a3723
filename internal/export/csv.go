// Package export renders parcel selections and skip-trace sessions as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/stwalsh4118/parcelbook/internal/models"
)

// Header is the first CSV row.
var Header = []string{
	"Property_ID",
	"Owner_Name",
	"Property_Address",
	"Mailing_Address",
	"Land_Value",
	"Market_Value",
	"Acreage",
	"County",
}

// WriteCSV writes the header and one row per property. Missing text is
// written empty and missing numbers as 0.
func WriteCSV(w io.Writer, properties []models.Property) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, p := range properties {
		row := []string{
			p.PropID,
			models.StringValue(p.OwnerName),
			models.StringValue(p.SitusAddr),
			models.StringValue(p.MailAddr),
			formatNumber(p.LandValue),
			formatNumber(p.MktValue),
			formatNumber(p.GisArea),
			p.County,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for property %d: %w", p.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatNumber(f *float64) string {
	return strconv.FormatFloat(models.FloatValue(f), 'f', -1, 64)
}

// Filename is the attachment name for an export made at t, e.g. properties-2024-05-01.csv.
func Filename(t time.Time) string {
	return "properties-" + t.Format("2006-01-02") + ".csv"
}
