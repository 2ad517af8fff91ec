package tracking

import "regexp"

// ClientInfo is the result of email-client classification. Client is empty
// when no pattern matched. HasPrior marks clients that carry a built-in
// prefetch prior independent of other signals.
type ClientInfo struct {
	Client          string  `json:"client,omitempty"`
	Version         string  `json:"version,omitempty"`
	PrefetchLikely  bool    `json:"prefetch_likely"`
	PriorConfidence float64 `json:"prior_confidence,omitempty"`
	HasPrior        bool    `json:"has_prior"`
}

// Vocabulary shared with the scorer: automated scanners and crawlers.
var reBotVocab = regexp.MustCompile(`(?i)bot|crawler|spider|slurp|scanner|curl|wget|python-requests|headless|monitor(?:ing)?|validator|preview(?:er)?`)

// Image-proxy fetchers that correlate with a real user open rather than an
// automated scan.
var reImageProxy = regexp.MustCompile(`(?i)GoogleImageProxy|ggpht\.com|YahooMailProxy`)

// Privacy-protection relays that fetch content on the user's behalf before
// (or regardless of) a real open.
var rePrivacyProxy = regexp.MustCompile(`(?i)mail[ -]?privacy[ -]?protection|privacy[ -]?relay|icloud[ -]?private[ -]?relay`)

var (
	reSafelink   = regexp.MustCompile(`(?i)safelinks?`)
	reOutlookWeb = regexp.MustCompile(`(?i)outlook\.com|outlook\.live|OWA/`)
	reAppleMail  = regexp.MustCompile(`(?i)Macintosh.*Mail/|iPhone.*Mail/|AppleMail|\bCFNetwork/.*Darwin`)
	reVersionOf  = map[string]*regexp.Regexp{
		"Thunderbird": regexp.MustCompile(`Thunderbird/(\d+[\d.]*)`),
		"Outlook":     regexp.MustCompile(`Microsoft Outlook (\d+[\d.]*)`),
		"Mail":        regexp.MustCompile(`Mail/(\d+[\d.]*)`),
	}
)

type clientPattern struct {
	re     *regexp.Regexp
	client string
}

// Ordered most specific first; the first match wins.
var clientPatterns = []clientPattern{
	{regexp.MustCompile(`(?i)GoogleImageProxy|ggpht\.com`), "Gmail"},
	{regexp.MustCompile(`(?i)\bGmail\b|GoogleMail`), "Gmail"},
	{reOutlookWeb, "Outlook.com"},
	{regexp.MustCompile(`(?i)Microsoft Outlook|MSOffice \d|ms-office`), "Outlook Desktop"},
	{regexp.MustCompile(`(?i)Thunderbird`), "Thunderbird"},
	{regexp.MustCompile(`(?i)YahooMailProxy|Yahoo!? ?Mail|YahooMobileMail`), "Yahoo Mail"},
	{regexp.MustCompile(`(?i)\bAOL\b|Aol ?Mail`), "AOL Mail"},
	{regexp.MustCompile(`(?i)ProtonMail`), "ProtonMail"},
	{regexp.MustCompile(`(?i)SamsungEmail|Samsung ?Mail`), "Samsung Mail"},
	{regexp.MustCompile(`(?i)\bSpark\b`), "Spark"},
	{regexp.MustCompile(`(?i)Edison`), "Edison"},
	{reAppleMail, "Apple Mail"},
}

// ClassifyEmailClient maps a user-agent string to a named mail client and a
// per-client prior on prefetch likelihood. Pure and deterministic.
func ClassifyEmailClient(ua string) ClientInfo {
	if ua == "" {
		return ClientInfo{}
	}

	if reBotVocab.MatchString(ua) && !reImageProxy.MatchString(ua) {
		return ClientInfo{
			Client:          "Bot/Scanner",
			PrefetchLikely:  true,
			PriorConfidence: 0.1,
			HasPrior:        true,
		}
	}

	for _, p := range clientPatterns {
		if !p.re.MatchString(ua) {
			continue
		}
		info := ClientInfo{Client: p.client, Version: clientVersion(p.client, ua)}
		switch p.client {
		case "Gmail":
			if reImageProxy.MatchString(ua) {
				// A proxied fetch from Gmail's servers correlates strongly
				// with a real user opening the message.
				info.PrefetchLikely = false
				info.PriorConfidence = 0.95
				info.HasPrior = true
			}
		case "Outlook.com":
			if reSafelink.MatchString(ua) {
				info.PrefetchLikely = true
				info.PriorConfidence = 0.3
				info.HasPrior = true
			}
		case "Apple Mail":
			if rePrivacyProxy.MatchString(ua) {
				info.PrefetchLikely = true
				info.PriorConfidence = 0.4
				info.HasPrior = true
			}
		}
		return info
	}

	// Apple's mail privacy proxy does not always identify Mail itself.
	if rePrivacyProxy.MatchString(ua) {
		return ClientInfo{
			Client:          "Apple Mail",
			PrefetchLikely:  true,
			PriorConfidence: 0.4,
			HasPrior:        true,
		}
	}

	return ClientInfo{}
}

func clientVersion(client, ua string) string {
	key := ""
	switch client {
	case "Thunderbird":
		key = "Thunderbird"
	case "Outlook Desktop":
		key = "Outlook"
	case "Apple Mail":
		key = "Mail"
	default:
		return ""
	}
	if m := reVersionOf[key].FindStringSubmatch(ua); m != nil {
		return m[1]
	}
	return ""
}
