package timeapi

import "sort"

// Zone is an IANA time zone identifier such as "America/New_York".
// The empty Zone asks the service to geolocate the caller by IP.
type Zone string

// ZoneIP is the empty zone, resolved by the time service from the caller's address
const ZoneIP Zone = ""

// KnownZones is the fixed set of zones the lookup accepts
var KnownZones = []Zone{
	"Africa/Cairo",
	"Africa/Johannesburg",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
	"America/New_York",
	"America/Sao_Paulo",
	"Asia/Kolkata",
	"Asia/Shanghai",
	"Asia/Singapore",
	"Asia/Tokyo",
	"Australia/Sydney",
	"Etc/UTC",
	"Europe/Berlin",
	"Europe/London",
	"Europe/Moscow",
	"Europe/Paris",
	"Pacific/Auckland",
}

var knownZoneSet = func() map[Zone]struct{} {
	m := make(map[Zone]struct{}, len(KnownZones))
	for _, z := range KnownZones {
		m[z] = struct{}{}
	}
	return m
}()

// Valid reports whether z is one of KnownZones. ZoneIP is not a member.
func (z Zone) Valid() bool {
	_, ok := knownZoneSet[z]
	return ok
}

// IsIP reports whether z requests IP-based lookup
func (z Zone) IsIP() bool {
	return z == ZoneIP
}

// String returns the identifier, or "ip" for the IP lookup zone
func (z Zone) String() string {
	if z.IsIP() {
		return "ip"
	}
	return string(z)
}

// ParseZone converts user input to a Zone. "" and "ip" select IP lookup.
// Anything else must be in KnownZones.
func ParseZone(s string) (Zone, bool) {
	if s == "" || s == "ip" {
		return ZoneIP, true
	}
	z := Zone(s)
	return z, z.Valid()
}

// SortedZones returns a copy of KnownZones in lexical order
func SortedZones() []Zone {
	out := make([]Zone, len(KnownZones))
	copy(out, KnownZones)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
