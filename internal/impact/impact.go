// Package impact is the HTTP client for the Impact advertiser REST API.
package impact

// Defaults and wire constants of the Impact advertiser API.
const (
	DefaultBaseURL = "https://api.impact.com/Advertisers/"

	ResourceConversions = "Conversions"
	ResourceActions     = "Actions"

	ReasonOrderUpdate = "ORDER_UPDATE"
	EventDateNow      = "NOW"

	// ClickIDAttribute is the generic attribute key for the click id on both
	// customers and orders.
	ClickIDAttribute = "Impact.ClickId"

	// ClickIDQueryParam carries the click id on landing URLs.
	ClickIDQueryParam = "irclickid"

	// CookiePrefix is followed by the program id in the tracking cookie name.
	CookiePrefix = "IR_"
)

// Payload is a flat form of string fields sent as a JSON object.
type Payload map[string]string
