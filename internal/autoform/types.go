package autoform

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is used when a search does not ask for a specific page size.
	DefaultLimit = 5
	// MaxLimit is the largest page the search endpoint serves.
	MaxLimit = 20

	searchPath = "/api/corporate_bodies/search"
)

// CorporateBody is one entity from the Slovak register of legal entities.
// Autoform omits fields it does not know, so every field is optional.
type CorporateBody struct {
	CIN                     *string `json:"cin,omitempty" jsonschema:"company identification number (IČO)"`
	TIN                     *string `json:"tin,omitempty" jsonschema:"tax identification number (DIČ)"`
	VATIN                   *string `json:"vatin,omitempty" jsonschema:"VAT identification number (IČ DPH)"`
	Name                    *string `json:"name,omitempty"`
	FormattedAddress        *string `json:"formatted_address,omitempty"`
	Street                  *string `json:"street,omitempty"`
	RegNumber               *string `json:"reg_number,omitempty"`
	BuildingNumber          *string `json:"building_number,omitempty"`
	PostalCode              *string `json:"postal_code,omitempty"`
	Municipality            *string `json:"municipality,omitempty"`
	Country                 *string `json:"country,omitempty"`
	EstablishedOn           *string `json:"established_on,omitempty"`
	TerminatedOn            *string `json:"terminated_on,omitempty"`
	DatahubCorporateBodyURL *string `json:"datahub_corporate_body_url,omitempty"`
}

// SearchResult is what query_corporate_bodies hands back to the agent.
type SearchResult struct {
	Results []CorporateBody `json:"results" jsonschema:"matching corporate bodies"`
	Count   int             `json:"count" jsonschema:"number of results returned"`
}

// SearchParams are the inputs of a corporate body search.
type SearchParams struct {
	Query      string
	Limit      int
	ActiveOnly bool
}

// Validate checks the params without touching the network.
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return &ValidationError{Field: "query", Message: "must not be empty"}
	}
	if p.Limit < 0 || p.Limit > MaxLimit {
		return &ValidationError{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(MaxLimit)}
	}
	return nil
}

// Request builds the remote search request. A zero Limit means DefaultLimit.
func (p SearchParams) Request() Request {
	limit := p.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("q", p.Query)
	q.Set("limit", strconv.Itoa(limit))
	if p.ActiveOnly {
		q.Set("filter", "active")
	}
	return Request{Method: http.MethodGet, Path: searchPath, Query: q}
}
