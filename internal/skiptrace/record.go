// Package skiptrace submits owner and address records to third-party
// contact lookup vendors and normalizes what comes back.
package skiptrace

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/stwalsh4118/parcelbook/internal/models"
)

// Result statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrNotConfigured means the provider has no credentials.
	ErrNotConfigured = errors.New("skip-trace provider not configured")
	// ErrUnknownProvider means no provider is registered under the name.
	ErrUnknownProvider = errors.New("unknown skip-trace provider")
	// ErrUpstream wraps non-2xx vendor responses and transport failures.
	ErrUpstream = errors.New("skip-trace vendor error")
)

// Record is one owner/address row submitted for lookup. Users may edit the
// fields derived from the parcel before submitting.
type Record struct {
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
	PropertyID int64  `json:"propertyId" binding:"required"`
}

// CityStateZip renders the second address line, e.g. "Burnet, TX 78611".
func (r Record) CityStateZip() string {
	line := strings.TrimSpace(r.City)
	stateZip := strings.TrimSpace(strings.TrimSpace(r.State) + " " + strings.TrimSpace(r.Zip))
	if stateZip == "" {
		return line
	}
	if line == "" {
		return stateZip
	}
	return line + ", " + stateZip
}

// Contact is the normalized contact information found for a record.
type Contact struct {
	Mobiles   []string `json:"mobiles"`
	Landlines []string `json:"landlines"`
	Emails    []string `json:"emails"`
}

// Empty reports whether nothing was found.
func (c *Contact) Empty() bool {
	return c == nil || len(c.Mobiles)+len(c.Landlines)+len(c.Emails) == 0
}

// Result is the per-record outcome. Data holds the vendor payload as returned.
type Result struct {
	Contact         *Contact        `json:"contact,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	Status          string          `json:"status"`
	Error           string          `json:"error,omitempty"`
	EndpointUsed    string          `json:"endpointUsed,omitempty"`
	FoundPersonName string          `json:"foundPersonName,omitempty"`
	PropertyID      int64           `json:"propertyId"`
}

func failed(rec Record, endpoint string, err error) Result {
	return Result{
		PropertyID:   rec.PropertyID,
		Status:       StatusFailed,
		Error:        err.Error(),
		EndpointUsed: endpoint,
	}
}

// RecordFromProperty derives a lookup record from a parcel. The owner name is
// split on spaces (first, middle..., last) and the situs address, falling back
// to the mailing address, on commas ("street, city, ST zip").
func RecordFromProperty(p models.Property) Record {
	rec := Record{PropertyID: p.ID}

	parts := strings.Fields(models.StringValue(p.OwnerName))
	if len(parts) > 0 {
		rec.FirstName = parts[0]
		rec.LastName = parts[len(parts)-1]
	}
	if len(parts) > 2 {
		rec.MiddleName = strings.Join(parts[1:len(parts)-1], " ")
	}

	address := models.StringValue(p.SitusAddr)
	if strings.TrimSpace(address) == "" {
		address = models.StringValue(p.MailAddr)
	}
	segments := strings.Split(address, ",")
	rec.Street = strings.TrimSpace(segments[0])
	if len(segments) > 1 {
		rec.City = strings.TrimSpace(segments[1])
	}
	if len(segments) > 2 {
		stateZip := strings.Fields(strings.Join(segments[2:], " "))
		if len(stateZip) > 0 {
			rec.State = stateZip[0]
		}
		if len(stateZip) > 1 {
			rec.Zip = stateZip[1]
		}
	}
	return rec
}

// phoneKind classifies vendor phone types: "Mobile", "wireless", "Land Line", "landline".
func phoneKind(t string) string {
	k := strings.ToLower(strings.ReplaceAll(t, " ", ""))
	switch k {
	case "mobile", "wireless", "cell":
		return "mobile"
	case "landline", "residential":
		return "landline"
	default:
		return ""
	}
}

func appendUnique(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
