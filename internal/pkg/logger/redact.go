package logger

import (
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	ipv4Regex  = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3})\.\d{1,3}\b`)
)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "contact_email") {
		return RedactEmail(val)
	}
	if strings.Contains(key, "ip") {
		return RedactIP(val)
	}
	// Redact any embedded emails or addresses in generic fields.
	val = emailRegex.ReplaceAllStringFunc(val, RedactEmail)
	return ipv4Regex.ReplaceAllString(val, "$1.0")
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" -> "jo***@example.com"
// Short local parts (<=2 chars) are fully masked: "ab@example.com" -> "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactIP zeroes the host-identifying bits of an IP for safe logging:
// last octet for IPv4, everything past the third group for IPv6. Matches the
// reduction applied before addresses are stored.
func RedactIP(ip string) string {
	if strings.Count(ip, ".") == 3 {
		return ipv4Regex.ReplaceAllString(ip, "$1.0")
	}
	if groups := strings.Split(ip, ":"); len(groups) >= 3 {
		return groups[0] + ":" + groups[1] + ":" + groups[2] + "::"
	}
	return ip
}
