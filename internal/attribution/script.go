package attribution

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/radiusdt/impact-connector/internal/models"
)

// HeadScript personalises the universal tracking script for customer.
func HeadScript(s models.Settings, customer models.Customer) string {
	if !s.Enabled {
		return ""
	}

	email := ""
	if !customer.IsGuest {
		email = strings.ReplaceAll(customer.Email, "'", `\'`)
	}

	script := strings.ReplaceAll(s.UniversalTrackingScript,
		"customerid: ''", "customerid: '"+strconv.FormatInt(customer.ID, 10)+"'")
	script = strings.ReplaceAll(script,
		"customeremail: ''", "customeremail: '"+EmailHash(email)+"'")
	return script
}

// EmailHash is the uppercase hex SHA-1 of email.
func EmailHash(email string) string {
	sum := sha1.Sum([]byte(email))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
