package settings

import (
	"strconv"
	"strings"

	"github.com/radiusdt/impact-connector/internal/models"
)

// Setting names in the host key-value table.
const (
	keyPrefix           = "impactsettings."
	keyEnabled          = keyPrefix + "enabled"
	keyAccountSID       = keyPrefix + "accountsid"
	keyAuthToken        = keyPrefix + "authtoken"
	keyProgramID        = keyPrefix + "programid"
	keyActionTrackerID  = keyPrefix + "actiontrackerid"
	keyUniversalScript  = keyPrefix + "universaltrackingscript"
	keyRequestTimeout   = keyPrefix + "requesttimeout"
	keyLogRequests      = keyPrefix + "logrequests"
	keyStoreIPAddresses = "customersettings.storeipaddresses"
)

func encode(s models.Settings) map[string]string {
	timeout := ""
	if s.RequestTimeout != nil {
		timeout = strconv.Itoa(*s.RequestTimeout)
	}
	return map[string]string{
		keyEnabled:         strconv.FormatBool(s.Enabled),
		keyAccountSID:      s.AccountSID,
		keyAuthToken:       s.AuthToken,
		keyProgramID:       s.ProgramID,
		keyActionTrackerID: s.ActionTrackerID,
		keyUniversalScript: s.UniversalTrackingScript,
		keyRequestTimeout:  timeout,
		keyLogRequests:     strconv.FormatBool(s.LogRequests),
	}
}

// decode builds settings from raw rows. Unparseable values fall back to the
// zero value, the same as a missing row.
func decode(raw map[string]string) models.Settings {
	s := models.Settings{
		Enabled:                 parseBool(raw[keyEnabled]),
		AccountSID:              raw[keyAccountSID],
		AuthToken:               raw[keyAuthToken],
		ProgramID:               raw[keyProgramID],
		ActionTrackerID:         raw[keyActionTrackerID],
		UniversalTrackingScript: raw[keyUniversalScript],
		LogRequests:             parseBool(raw[keyLogRequests]),
		StoreIPAddresses:        parseBool(raw[keyStoreIPAddresses]),
	}
	if v, err := strconv.Atoi(strings.TrimSpace(raw[keyRequestTimeout])); err == nil {
		s.RequestTimeout = &v
	}
	return s
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}

func hasPluginKeys(raw map[string]string) bool {
	for k := range raw {
		if strings.HasPrefix(k, keyPrefix) {
			return true
		}
	}
	return false
}
