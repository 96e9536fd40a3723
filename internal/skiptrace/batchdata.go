package skiptrace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// BatchData provider names and defaults.
const (
	ProviderBatchData       = "batchdata"
	DefaultBatchDataBaseURL = "https://api.batchdata.com"
	batchDataPath           = "/v1/skip-trace"
)

// BatchData looks up a whole batch of addresses in one vendor call.
type BatchData struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewBatchData creates a BatchData provider. An empty baseURL uses the public API.
func NewBatchData(client *http.Client, baseURL, apiKey string) *BatchData {
	if baseURL == "" {
		baseURL = DefaultBatchDataBaseURL
	}
	return &BatchData{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// Name returns the provider name.
func (b *BatchData) Name() string { return ProviderBatchData }

type batchDataAddress struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

type batchDataItem struct {
	PropertyAddress batchDataAddress `json:"propertyAddress"`
}

type batchDataRequest struct {
	Requests []batchDataItem `json:"requests"`
}

type batchDataPerson struct {
	PhoneNumbers []struct {
		Number string `json:"number"`
		Type   string `json:"type"`
	} `json:"phoneNumbers"`
	Emails []struct {
		Email string `json:"email"`
	} `json:"emails"`
}

type batchDataResponse struct {
	Results struct {
		Persons []json.RawMessage `json:"persons"`
	} `json:"results"`
}

// Lookup traces a single record.
func (b *BatchData) Lookup(ctx context.Context, rec Record) Result {
	return b.LookupBatch(ctx, []Record{rec})[0]
}

// LookupBatch sends every record in one request. Results are matched to
// records by position; a missing person yields a completed, empty result.
func (b *BatchData) LookupBatch(ctx context.Context, recs []Record) []Result {
	results := make([]Result, len(recs))
	fail := func(err error) []Result {
		for i, rec := range recs {
			results[i] = failed(rec, "", err)
		}
		return results
	}

	if b.apiKey == "" {
		return fail(fmt.Errorf("%w: BATCHDATA_API_KEY is not set", ErrNotConfigured))
	}

	var body batchDataRequest
	body.Requests = make([]batchDataItem, len(recs))
	for i, rec := range recs {
		body.Requests[i].PropertyAddress = batchDataAddress{
			Street: rec.Street,
			City:   rec.City,
			State:  rec.State,
			Zip:    rec.Zip,
		}
	}

	raw, err := postJSON(ctx, b.client, b.baseURL+batchDataPath, map[string]string{
		"Authorization": "Bearer " + b.apiKey,
	}, body)
	if err != nil {
		return fail(fmt.Errorf("BatchData API error: %w", err))
	}

	var resp batchDataResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fail(fmt.Errorf("%w: failed to parse BatchData response: %v", ErrUpstream, err))
	}

	for i, rec := range recs {
		result := Result{PropertyID: rec.PropertyID, Status: StatusCompleted, Contact: &Contact{}}
		if i < len(resp.Results.Persons) {
			result.Data = resp.Results.Persons[i]
			result.Contact = batchDataContact(resp.Results.Persons[i])
		}
		results[i] = result
	}
	return results
}

func batchDataContact(raw json.RawMessage) *Contact {
	contact := &Contact{}
	var person batchDataPerson
	if err := json.Unmarshal(raw, &person); err != nil {
		return contact
	}
	for _, phone := range person.PhoneNumbers {
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
