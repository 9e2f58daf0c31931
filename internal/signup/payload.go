package signup

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/identity"
	"github.com/nafee3/nafee3/internal/media"
	"github.com/nafee3/nafee3/internal/notification"
	"github.com/nafee3/nafee3/internal/profile"
)

// Payload is the signup form as submitted.
type Payload struct {
	Phone              string               `json:"phone"`
	FullName           string               `json:"full_name"`
	DateOfBirth        string               `json:"date_of_birth"`
	ServiceCity        string               `json:"service_city"`
	ServiceArea        string               `json:"service_area"`
	ServiceDescription string               `json:"service_description"`
	Channel            notification.Channel `json:"channel"`
	// Photo is optional. It is only uploaded once the phone is verified.
	Photo *media.Upload `json:"-"`
}

// Validate checks the form without touching the network.
func (p Payload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Phone, validation.Required),
		validation.Field(&p.FullName, validation.Required, validation.Length(2, 100)),
		validation.Field(&p.DateOfBirth, validation.Required, validation.Date(profile.DateLayout)),
		validation.Field(&p.ServiceCity, validation.Required),
		validation.Field(&p.ServiceArea, validation.Required),
		validation.Field(&p.ServiceDescription, validation.Length(0, 2000)),
		validation.Field(&p.Channel, validation.In(notification.ChannelSMS, notification.ChannelWhatsApp)),
	)
	return apperr.FromValidation(err)
}

// PendingSignup is the staged form data held between the code request and
// profile creation. It belongs to exactly one Coordinator.
type PendingSignup struct {
	// Phone is in E.164 form.
	Phone              string
	FullName           string
	DateOfBirth        string
	ServiceCity        string
	ServiceArea        string
	ServiceDescription string
	Channel            notification.Channel
	Photo              *media.Upload
	// PhotoURL is set once the photo is uploaded so retries do not upload again.
	PhotoURL    string
	RequestedAt time.Time
}

func stage(p Payload, region string, now time.Time) (*PendingSignup, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	phone, err := identity.NormalizePhone(p.Phone, region)
	if err != nil {
		return nil, apperr.Validation("invalid phone number", map[string]string{"phone": "must be a valid phone number"})
	}
	if p.Photo != nil {
		if _, err := media.ValidatePhoto(p.Photo.Data); err != nil {
			return nil, err
		}
	}
	channel := p.Channel
	if channel == "" {
		channel = notification.ChannelSMS
	}
	return &PendingSignup{
		Phone:              phone,
		FullName:           p.FullName,
		DateOfBirth:        p.DateOfBirth,
		ServiceCity:        p.ServiceCity,
		ServiceArea:        p.ServiceArea,
		ServiceDescription: p.ServiceDescription,
		Channel:            channel,
		Photo:              p.Photo,
		RequestedAt:        now,
	}, nil
}
