// Package profile stores the durable marketplace record bound 1:1 to an
// identity, and exposes the gateway the coordinators use to reach it.
package profile

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/nafee3/nafee3/internal/apperr"
)

// DateLayout is the wire format of DateOfBirth.
const DateLayout = "2006-01-02"

// Profile is keyed by the owning identity's id.
type Profile struct {
	ProfileID          string   `json:"profile_id"`
	FullName           string   `json:"full_name"`
	PhoneNumber        string   `json:"phone_number"`
	DateOfBirth        string   `json:"date_of_birth"`
	ServiceCity        string   `json:"service_city"`
	ServiceArea        string   `json:"service_area"`
	ServiceDescription string   `json:"service_description"`
	ProfilePhoto       string   `json:"profile_photo"`
	PortfolioPhotos    []string `json:"portfolio_photos"`
}

// Validate checks required fields. It returns an *apperr.Error of kind
// validation with per-field messages.
func (p Profile) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.ProfileID, validation.Required, is.UUID),
		validation.Field(&p.FullName, validation.Required, validation.Length(2, 100)),
		validation.Field(&p.PhoneNumber, validation.Required, validation.Length(8, 16)),
		validation.Field(&p.DateOfBirth, validation.Required, validation.Date(DateLayout)),
		validation.Field(&p.ServiceCity, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.ServiceArea, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.ServiceDescription, validation.Length(0, 2000)),
		validation.Field(&p.PortfolioPhotos, validation.Length(0, 12)),
	)
	return apperr.FromValidation(err)
}

// Summary is one ranked search result.
type Summary struct {
	ProfileID          string  `json:"profile_id"`
	FullName           string  `json:"full_name"`
	ServiceDescription string  `json:"service_description"`
	ServiceCity        string  `json:"service_city"`
	ServiceArea        string  `json:"service_area"`
	PhoneNumber        string  `json:"phone_number"`
	ProfilePhoto       string  `json:"profile_photo"`
	Similarity         float64 `json:"similarity"`
}

// SearchQuery is the body of a search request.
type SearchQuery struct {
	Query string `json:"query"`
	// SearchCity and SearchArea, when set, restrict results to exact matches.
	SearchCity   string  `json:"search_city,omitempty"`
	SearchArea   string  `json:"search_area,omitempty"`
	SimThreshold float64 `json:"sim_threshold"`
	TopK         int     `json:"top_k"`
}

func (q SearchQuery) Validate() error {
	err := validation.ValidateStruct(&q,
		validation.Field(&q.Query, validation.Required, validation.Length(1, 500)),
		validation.Field(&q.SimThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&q.TopK, validation.Min(0), validation.Max(200)),
	)
	return apperr.FromValidation(err)
}

func (p Profile) summary(similarity float64) Summary {
	return Summary{
		ProfileID:          p.ProfileID,
		FullName:           p.FullName,
		ServiceDescription: p.ServiceDescription,
		ServiceCity:        p.ServiceCity,
		ServiceArea:        p.ServiceArea,
		PhoneNumber:        p.PhoneNumber,
		ProfilePhoto:       p.ProfilePhoto,
		Similarity:         similarity,
	}
}
