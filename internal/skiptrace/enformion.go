package skiptrace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Enformion provider names, endpoints and defaults.
const (
	ProviderEnformion        = "enformion"
	ProviderEnformionAddress = "enformion-address"
	DefaultEnformionBaseURL  = "https://devapi.enformion.com"

	enformionContactPath = "/Contact/Enrich"
	enformionAddressPath = "/Address/Id"

	searchTypeContact = "DevAPIContactEnrich"
	searchTypeAddress = "DevAPIAddressID"
	clientType        = "Galaxy Client Type"

	endpointAddressID       = "Address ID"
	endpointAddressToEnrich = "Address ID → Contact Enrichment"
)

// EnformionCredentials are the galaxy access profile values.
type EnformionCredentials struct {
	APName     string
	APPassword string
}

type enformionClient struct {
	client  *http.Client
	baseURL string
	creds   EnformionCredentials
}

func newEnformionClient(client *http.Client, baseURL string, creds EnformionCredentials) enformionClient {
	if baseURL == "" {
		baseURL = DefaultEnformionBaseURL
	}
	return enformionClient{client: client, baseURL: strings.TrimRight(baseURL, "/"), creds: creds}
}

func (e enformionClient) configured() error {
	if e.creds.APName == "" || e.creds.APPassword == "" {
		return fmt.Errorf("%w: ENFORMION_AP_NAME and ENFORMION_AP_PASSWORD must be set", ErrNotConfigured)
	}
	return nil
}

func (e enformionClient) post(ctx context.Context, path, searchType string, propertyID int64, body interface{}) ([]byte, error) {
	return postJSON(ctx, e.client, e.baseURL+path, map[string]string{
		"galaxy-ap-name":           e.creds.APName,
		"galaxy-ap-password":       e.creds.APPassword,
		"galaxy-search-type":       searchType,
		"galaxy-client-session-id": fmt.Sprintf("session_%d_%s", propertyID, uuid.NewString()),
		"galaxy-client-type":       clientType,
	}, body)
}

type enformionAddress struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
}

type contactEnrichRequest struct {
	FirstName  string           `json:"FirstName"`
	MiddleName string           `json:"MiddleName"`
	LastName   string           `json:"LastName"`
	Address    enformionAddress `json:"Address"`
}

type enformionName struct {
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
}

func (n enformionName) full() string {
	return strings.Join(strings.Fields(n.FirstName+" "+n.MiddleName+" "+n.LastName), " ")
}

type enformionPerson struct {
	Name   enformionName `json:"name"`
	Phones []struct {
		Number string `json:"number"`
		Type   string `json:"type"`
	} `json:"phones"`
	Emails []struct {
		Email string `json:"email"`
	} `json:"emails"`
}

type enformionResponse struct {
	Person  *enformionPerson  `json:"person"`
	Persons []enformionPerson `json:"persons"`
}

// first returns person, or persons[0], or nil.
func (r enformionResponse) first() *enformionPerson {
	if r.Person != nil {
		return r.Person
	}
	if len(r.Persons) > 0 {
		return &r.Persons[0]
	}
	return nil
}

func enformionContact(raw []byte) *Contact {
	contact := &Contact{}
	var resp enformionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return contact
	}
	person := resp.first()
	if person == nil {
		return contact
	}
	for _, phone := range person.Phones {
		switch phoneKind(phone.Type) {
		case "mobile":
			contact.Mobiles = appendUnique(contact.Mobiles, phone.Number)
		case "landline":
			contact.Landlines = appendUnique(contact.Landlines, phone.Number)
		}
	}
	for _, email := range person.Emails {
		contact.Emails = appendUnique(contact.Emails, email.Email)
	}
	return contact
}

// Enformion enriches a named owner at an address with phones and emails.
type Enformion struct {
	api enformionClient
}

// NewEnformion creates the contact enrichment provider.
func NewEnformion(client *http.Client, baseURL string, creds EnformionCredentials) *Enformion {
	return &Enformion{api: newEnformionClient(client, baseURL, creds)}
}

// Name returns the provider name.
func (e *Enformion) Name() string { return ProviderEnformion }

// Lookup calls Contact Enrich for one record.
func (e *Enformion) Lookup(ctx context.Context, rec Record) Result {
	if err := e.api.configured(); err != nil {
		return failed(rec, "", err)
	}
	return e.api.enrich(ctx, rec, "")
}

func (e enformionClient) enrich(ctx context.Context, rec Record, endpoint string) Result {
	raw, err := e.post(ctx, enformionContactPath, searchTypeContact, rec.PropertyID, contactEnrichRequest{
		FirstName:  rec.FirstName,
		MiddleName: rec.MiddleName,
		LastName:   rec.LastName,
		Address: enformionAddress{
			AddressLine1: rec.Street,
			AddressLine2: rec.CityStateZip(),
		},
	})
	if err != nil {
		return failed(rec, endpoint, fmt.Errorf("EnformionGo API error: %w", err))
	}
	return Result{
		PropertyID:   rec.PropertyID,
		Status:       StatusCompleted,
		Data:         raw,
		Contact:      enformionContact(raw),
		EndpointUsed: endpoint,
	}
}

// EnformionAddress resolves the resident at an address first and, when one
// is found, enriches that person's contact details.
type EnformionAddress struct {
	api enformionClient
}

// NewEnformionAddress creates the address-first provider.
func NewEnformionAddress(client *http.Client, baseURL string, creds EnformionCredentials) *EnformionAddress {
	return &EnformionAddress{api: newEnformionClient(client, baseURL, creds)}
}

// Name returns the provider name.
func (e *EnformionAddress) Name() string { return ProviderEnformionAddress }

// Lookup calls Address ID and chains to Contact Enrich on a match.
func (e *EnformionAddress) Lookup(ctx context.Context, rec Record) Result {
	if err := e.api.configured(); err != nil {
		return failed(rec, endpointAddressID, err)
	}

	raw, err := e.api.post(ctx, enformionAddressPath, searchTypeAddress, rec.PropertyID, enformionAddress{
		AddressLine1: rec.Street,
		AddressLine2: rec.CityStateZip(),
	})
	if err != nil {
		return failed(rec, endpointAddressID, fmt.Errorf("Address ID API error: %w", err))
	}

	var resp enformionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return failed(rec, endpointAddressID, fmt.Errorf("%w: failed to parse Address ID response: %v", ErrUpstream, err))
	}

	person := resp.first()
	if person == nil {
		return Result{
			PropertyID:   rec.PropertyID,
			Status:       StatusCompleted,
			Data:         raw,
			Contact:      &Contact{},
			EndpointUsed: endpointAddressID,
		}
	}

	resident := rec
	resident.FirstName = person.Name.FirstName
	resident.MiddleName = person.Name.MiddleName
	resident.LastName = person.Name.LastName

	result := e.api.enrich(ctx, resident, endpointAddressToEnrich)
	result.FoundPersonName = person.Name.full()
	if result.Status == StatusFailed {
		// Keep what Address ID found even though enrichment failed.
		result.Data = raw
		result.Contact = enformionContact(raw)
	}
	return result
}
