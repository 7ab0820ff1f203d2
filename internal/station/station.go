// Package station identifies the capture station's local time zone and country.
package station

import (
	"strings"
	"time"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// Unknown is reported when a country cannot be resolved
const Unknown = "Unknown"

// Info describes where the station is, as far as the system clock knows
type Info struct {
	Timezone string         // IANA name, e.g. "Europe/London"
	Country  string         // country name, or Unknown
	Location *time.Location // used to align capture windows to local time
}

// Detect returns the station info for the system time zone.
// Falls back to the process's local location if detection fails.
func Detect() Info {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil || timezone == "" {
		return Info{Timezone: time.Local.String(), Country: Unknown, Location: time.Local}
	}
	return ForTimezone(timezone)
}

// ForTimezone returns the station info for a given IANA timezone.
// Exported for testing with specific timezones.
func ForTimezone(timezone string) Info {
	info := Info{Timezone: timezone, Country: Unknown, Location: time.Local}

	if loc, err := time.LoadLocation(timezone); err == nil {
		info.Location = loc
	}

	// UTC/GMT have no country association
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return info
	}

	tzMap, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return info
	}

	if country, err := tzMap.GetCountry(timezone); err == nil && country != "" {
		info.Country = country
	}
	return info
}

// String formats the info for logs and reports
func (i Info) String() string {
	return i.Timezone + " (" + i.Country + ")"
}
