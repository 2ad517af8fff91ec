package tracking

import (
	"strconv"
	"strings"
)

// AnonymizeIP reduces an IP address to a privacy-safe prefix before storage:
// IPv4 keeps the first three octets ("1.2.3.4" -> "1.2.3.0"), IPv6 keeps the
// first three colon groups ("2001:db8:85a3:8d3::1" -> "2001:db8:85a3::").
// Anything unparseable becomes the literal "unknown". Never errors.
func AnonymizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "unknown"
	}

	if octets := strings.Split(ip, "."); len(octets) == 4 && !strings.Contains(ip, ":") {
		for _, o := range octets {
			n, err := strconv.Atoi(o)
			if err != nil || n < 0 || n > 255 {
				return "unknown"
			}
		}
		return octets[0] + "." + octets[1] + "." + octets[2] + ".0"
	}

	if groups := strings.Split(ip, ":"); len(groups) >= 3 && !strings.Contains(ip, ".") {
		return groups[0] + ":" + groups[1] + ":" + groups[2] + "::"
	}

	return "unknown"
}
