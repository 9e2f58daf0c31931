package identity

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/nafee3/nafee3/internal/apperr"
)

// DefaultRegion is used for numbers entered without a country prefix.
const DefaultRegion = "SY"

// NormalizePhone parses a user-entered number and returns it in E.164 form.
// Numbers without a leading + are read in region.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperr.New(apperr.KindInvalidPhone, "phone number is required")
	}
	if region == "" {
		region = DefaultRegion
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindInvalidPhone, "unparseable phone number")
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", apperr.New(apperr.KindInvalidPhone, "phone number has an impossible length")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
