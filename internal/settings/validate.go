package settings

import (
	"sort"
	"strings"

	"github.com/radiusdt/impact-connector/internal/models"
)

// FieldErrors maps a JSON field name to its validation message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

// Validate returns nil when s can be saved. Credentials and identifiers are
// only required once the integration is enabled.
func Validate(s models.Settings) FieldErrors {
	errs := FieldErrors{}

	if s.Enabled {
		required := []struct {
			field string
			value string
		}{
			{"account_sid", s.AccountSID},
			{"auth_token", s.AuthToken},
			{"program_id", s.ProgramID},
			{"action_tracker_id", s.ActionTrackerID},
			{"universal_tracking_script", s.UniversalTrackingScript},
		}
		for _, r := range required {
			if strings.TrimSpace(r.value) == "" {
				errs[r.field] = "is required"
			}
		}
	}

	if s.RequestTimeout != nil && *s.RequestTimeout <= 0 {
		errs["request_timeout"] = "must be positive"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
