// Package settings holds the console's farm configuration. Values travel
// as strings on the wire and are parsed here.
package settings

import (
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
)

// Keys of the flat settings object.
const (
	KeyFarmName             = "farmName"
	KeyHealthAlertThreshold = "healthAlertThreshold"
	KeyAlertEmail           = "alertEmail"
	KeyRetentionDays        = "retentionDays"
	KeyMobileNotifications  = "mobileNotifications"
)

// Keys lists every known key in display order.
var Keys = []string{
	KeyFarmName,
	KeyHealthAlertThreshold,
	KeyAlertEmail,
	KeyRetentionDays,
	KeyMobileNotifications,
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid settings")

// Settings is the parsed configuration.
type Settings struct {
	FarmName             string
	HealthAlertThreshold int
	AlertEmail           string
	RetentionDays        int
	MobileNotifications  bool
}

// Defaults returns the configuration used before anything is saved.
func Defaults() Settings {
	return Settings{
		FarmName:             "Home Farm",
		HealthAlertThreshold: 70,
		RetentionDays:        30,
		MobileNotifications:  true,
	}
}

// FromValues parses a flat key/value object on top of base. Unknown keys
// are ignored; missing keys keep the base value.
func FromValues(base Settings, values map[string]string) (Settings, error) {
	s := base
	var errs []error

	if v, ok := values[KeyFarmName]; ok {
		s.FarmName = strings.TrimSpace(v)
	}
	if v, ok := values[KeyHealthAlertThreshold]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a number", KeyHealthAlertThreshold, v))
		} else {
			s.HealthAlertThreshold = n
		}
	}
	if v, ok := values[KeyAlertEmail]; ok {
		s.AlertEmail = strings.TrimSpace(v)
	}
	if v, ok := values[KeyRetentionDays]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a number", KeyRetentionDays, v))
		} else {
			s.RetentionDays = n
		}
	}
	if v, ok := values[KeyMobileNotifications]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a boolean", KeyMobileNotifications, v))
		} else {
			s.MobileNotifications = b
		}
	}

	if len(errs) > 0 {
		return base, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	if err := s.Validate(); err != nil {
		return base, err
	}
	return s, nil
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	var errs []error
	if s.FarmName == "" {
		errs = append(errs, fmt.Errorf("%s: must not be empty", KeyFarmName))
	}
	if s.HealthAlertThreshold < 0 || s.HealthAlertThreshold > 100 {
		errs = append(errs, fmt.Errorf("%s: %d outside 0..100", KeyHealthAlertThreshold, s.HealthAlertThreshold))
	}
	if s.RetentionDays < 1 {
		errs = append(errs, fmt.Errorf("%s: must be at least 1", KeyRetentionDays))
	}
	if s.AlertEmail != "" {
		if _, err := mail.ParseAddress(s.AlertEmail); err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an address", KeyAlertEmail, s.AlertEmail))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Values renders the settings as the flat string object used on the wire.
func (s Settings) Values() map[string]string {
	return map[string]string{
		KeyFarmName:             s.FarmName,
		KeyHealthAlertThreshold: strconv.Itoa(s.HealthAlertThreshold),
		KeyAlertEmail:           s.AlertEmail,
		KeyRetentionDays:        strconv.Itoa(s.RetentionDays),
		KeyMobileNotifications:  strconv.FormatBool(s.MobileNotifications),
	}
}
