package access

import (
	"strings"
	"time"
)

// TagPrefix is the prefix of the names of all router objects created for a
// window.
const TagPrefix = "scheduled-access-"

const saltFormat = "20060102T150405"

// Role is the function of a router object within a window.
type Role string

// Rule and task roles.
const (
	RoleBlock   Role = "block"
	RoleAllow   Role = "allow"
	RoleEnable  Role = "enable"
	RoleDisable Role = "disable"
)

var roles = []Role{RoleBlock, RoleAllow, RoleEnable, RoleDisable}

// Tag binds the router objects of a single window to a client address.
type Tag struct {
	IP string
	// Salt distinguishes successive windows of the same address. It's empty
	// unless salting is enabled.
	Salt string
}

// TagFor returns the tag of the window for the given canonical address.
func TagFor(ip string) Tag {
	return Tag{IP: ip}
}

// SaltedTagFor returns a tag that is unique to the given time.
func SaltedTagFor(ip string, t time.Time) Tag {
	return Tag{IP: ip, Salt: t.UTC().Format(saltFormat)}
}

// String returns the tag in its name form, e.g.
// "scheduled-access-10.0.0.5" or "scheduled-access-10.0.0.5@20261019T080000".
func (t Tag) String() string {
	if t.Salt == "" {
		return TagPrefix + t.IP
	}
	return TagPrefix + t.IP + "@" + t.Salt
}

// RuleName returns the comment of the firewall rule with the given role.
func (t Tag) RuleName(role Role) string {
	return t.String() + "-" + string(role)
}

// TaskName returns the name of the scheduled task with the given role.
func (t Tag) TaskName(role Role) string {
	return t.String() + "-" + string(role)
}

// Matches reports whether name belongs to any window of the given address,
// regardless of its salt. Names of the legacy scheme are matched as well.
// Names of other addresses never match, even if the address is a textual
// prefix of theirs (e.g. 10.0.0.5 and 10.0.0.50).
func Matches(ip, name string) bool {
	if matchesLegacy(ip, name) {
		return true
	}

	tagIP, _, ok := ParseName(name)
	return ok && tagIP == ip
}

// ParseName extracts the address and role from the name of a router object
// created for a window. It returns false if the name doesn't follow the
// naming scheme.
func ParseName(name string) (ip string, role Role, ok bool) {
	rest, found := strings.CutPrefix(name, TagPrefix)
	if !found {
		return "", "", false
	}

	// The role comes last, and addresses in range notation contain dashes, so
	// split on the last one.
	i := strings.LastIndexByte(rest, '-')
	if i <= 0 {
		return "", "", false
	}
	ip, role = rest[:i], Role(rest[i+1:])
	if !isRole(role) {
		return "", "", false
	}

	if at := strings.IndexByte(ip, '@'); at >= 0 {
		if _, err := time.Parse(saltFormat, ip[at+1:]); err != nil {
			return "", "", false
		}
		ip = ip[:at]
	}
	if ip == "" {
		return "", "", false
	}

	return ip, role, true
}

func isRole(r Role) bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

// Objects created by earlier deployments used a different naming scheme:
// rules were commented "Programado-<ip>-bloqueo" and "Programado-<ip>-acceso",
// and tasks were named "activar-<ip>" and "desactivar-<ip>".
func matchesLegacy(ip, name string) bool {
	legacyIP, _, ok := parseLegacyName(name)
	return ok && legacyIP == ip
}

func parseLegacyName(name string) (ip string, role Role, ok bool) {
	if rest, found := strings.CutPrefix(name, "Programado-"); found {
		if ip, found = strings.CutSuffix(rest, "-bloqueo"); found && ip != "" {
			return ip, RoleBlock, true
		}
		if ip, found = strings.CutSuffix(rest, "-acceso"); found && ip != "" {
			return ip, RoleAllow, true
		}
		return "", "", false
	}
	if ip, found := strings.CutPrefix(name, "activar-"); found && ip != "" {
		return ip, RoleEnable, true
	}
	if ip, found := strings.CutPrefix(name, "desactivar-"); found && ip != "" {
		return ip, RoleDisable, true
	}
	return "", "", false
}

// parseAnyName is like ParseName, but also understands legacy names.
func parseAnyName(name string) (ip string, role Role, ok bool) {
	if ip, role, ok = ParseName(name); ok {
		return ip, role, ok
	}
	return parseLegacyName(name)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
