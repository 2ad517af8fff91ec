package tracking

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Linker builds the tracked URLs embedded in outbound email and rewrites
// campaign HTML to use them. The sending subsystem calls this at render time.
type Linker struct {
	baseURL string
}

// NewLinker creates a linker rooted at the public tracking base URL,
// e.g. "https://trk.example.com".
func NewLinker(baseURL string) *Linker {
	return &Linker{baseURL: strings.TrimRight(baseURL, "/")}
}

// PixelURL returns the open-tracking pixel URL for one recipient. sentAt is
// embedded so the open endpoint can score send-to-open timing without a
// storage lookup.
func (l *Linker) PixelURL(campaignID, contactID uuid.UUID, sentAt time.Time) string {
	return fmt.Sprintf("%s/track/open?c=%s&ct=%s&t=%d",
		l.baseURL, campaignID, contactID, sentAt.UnixMilli())
}

// ClickURL returns the tracked redirect URL for a destination link. pos is
// the link's position within the message body, starting at 1.
func (l *Linker) ClickURL(campaignID, contactID uuid.UUID, destURL string, pos int) string {
	return fmt.Sprintf("%s/track/click?c=%s&ct=%s&url=%s&pos=%d",
		l.baseURL, campaignID, contactID, url.QueryEscape(destURL), pos)
}

// InjectTracking appends the open pixel before </body> and rewrites every
// http(s) href to a tracked redirect. Links already pointing at /track/ are
// left alone.
func (l *Linker) InjectTracking(html string, campaignID, contactID uuid.UUID, sentAt time.Time) string {
	html = l.rewriteLinks(html, campaignID, contactID)

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" alt="" />`,
		l.PixelURL(campaignID, contactID, sentAt))
	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", pixel+"</body>", 1)
	}
	return html + pixel
}

func (l *Linker) rewriteLinks(html string, campaignID, contactID uuid.UUID) string {
	const marker = `href="http`

	var b strings.Builder
	pos := 0
	rest := html
	for {
		idx := strings.Index(rest, marker)
		if idx == -1 {
			b.WriteString(rest)
			break
		}

		start := idx + len(`href="`)
		end := strings.Index(rest[start:], `"`)
		if end == -1 {
			b.WriteString(rest)
			break
		}

		original := rest[start : start+end]
		b.WriteString(rest[:start])
		if strings.Contains(original, "/track/") {
			b.WriteString(original)
		} else {
			pos++
			b.WriteString(l.ClickURL(campaignID, contactID, original, pos))
		}
		rest = rest[start+end:]
	}
	return b.String()
}
