package tracking

import "fmt"

// ScoringPolicy is the named, versioned table of signal weights behind the
// prefetch classifier. The defaults are what production runs; overriding
// individual weights in config lets the policy be tuned without touching
// dispatch logic.
type ScoringPolicy struct {
	Version string `yaml:"version"`

	ClientPrior      int `yaml:"client_prior"`       // email client carries a prefetch prior
	BotUserAgent     int `yaml:"bot_user_agent"`     // bot/crawler/scanner vocabulary
	SendUnder5s      int `yaml:"send_under_5s"`      // opened < 5s after send
	SendUnder30s     int `yaml:"send_under_30s"`     // opened 5-30s after send
	PurposeHeader    int `yaml:"purpose_header"`     // Purpose: prefetch|preview
	SecFetchNoCors   int `yaml:"sec_fetch_no_cors"`  // Sec-Fetch-Mode: no-cors
	PrefetchHints    int `yaml:"prefetch_hints"`     // non-standard hint headers present
	PrivacyProxy     int `yaml:"privacy_proxy"`      // UA mentions a mail-privacy service
	ImageProxy       int `yaml:"image_proxy"`        // UA is a known image proxy (negative)
	EmptyUserAgent   int `yaml:"empty_user_agent"`   // missing UA
	RapidRepeat      int `yaml:"rapid_repeat"`       // repeat hit for same contact < 100ms
	PrefetchCutoff   int `yaml:"prefetch_cutoff"`    // score at which a hit is classified prefetch
	RapidRepeatMs    int `yaml:"rapid_repeat_ms"`    // repeat window in milliseconds
}

// DefaultScoringPolicy returns the production weight table.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		Version:        "v1",
		ClientPrior:    40,
		BotUserAgent:   50,
		SendUnder5s:    30,
		SendUnder30s:   15,
		PurposeHeader:  60,
		SecFetchNoCors: 20,
		PrefetchHints:  50,
		PrivacyProxy:   25,
		ImageProxy:     -20,
		EmptyUserAgent: 30,
		RapidRepeat:    25,
		PrefetchCutoff: 50,
		RapidRepeatMs:  100,
	}
}

// Timing carries the caller-supplied send-to-open intervals. The scorer never
// reads the clock itself.
type Timing struct {
	MillisSinceSend      *int64
	MillisSinceLastEvent *int64
}

// ScoreResult is the prefetch classification for one hit.
type ScoreResult struct {
	IsLikelyPrefetch bool
	Confidence       float64 // always within [0,1]
	Score            int     // clamped to [0,100]
	Reasons          []string
}

// ScorePrefetch combines classifier output, header signals, and timing into
// an automation score. Pure and deterministic for identical inputs.
func (p ScoringPolicy) ScorePrefetch(sig Signals, client ClientInfo, timing Timing) ScoreResult {
	score := 0
	var reasons []string
	add := func(delta int, reason string) {
		score += delta
		reasons = append(reasons, reason)
	}

	if client.HasPrior && client.PrefetchLikely {
		add(p.ClientPrior, fmt.Sprintf("%s carries a prefetch prior (%.2f)", client.Client, client.PriorConfidence))
	}
	if sig.UserAgent != "" && reBotVocab.MatchString(sig.UserAgent) && !reImageProxy.MatchString(sig.UserAgent) {
		add(p.BotUserAgent, "user-agent matches bot/scanner vocabulary")
	}
	if t := timing.MillisSinceSend; t != nil {
		if *t < 5000 {
			add(p.SendUnder5s, fmt.Sprintf("opened %dms after send", *t))
		} else if *t < 30000 {
			add(p.SendUnder30s, fmt.Sprintf("opened %dms after send", *t))
		}
	}
	if sig.Purpose == "prefetch" || sig.Purpose == "preview" {
		add(p.PurposeHeader, "Purpose header is "+sig.Purpose)
	}
	if sig.SecFetchMode == "no-cors" {
		add(p.SecFetchNoCors, "Sec-Fetch-Mode is no-cors")
	}
	if len(sig.PrefetchHints) > 0 {
		add(p.PrefetchHints, fmt.Sprintf("prefetch-hint headers present (%d)", len(sig.PrefetchHints)))
	}
	if rePrivacyProxy.MatchString(sig.UserAgent) {
		add(p.PrivacyProxy, "user-agent mentions a mail-privacy service")
	}
	if reImageProxy.MatchString(sig.UserAgent) {
		add(p.ImageProxy, "user-agent is a known image proxy")
	}
	if sig.UserAgent == "" {
		add(p.EmptyUserAgent, "user-agent is empty")
	}
	if t := timing.MillisSinceLastEvent; t != nil && *t >= 0 && *t < int64(p.RapidRepeatMs) {
		add(p.RapidRepeat, fmt.Sprintf("repeat hit %dms after previous event", *t))
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	res := ScoreResult{Score: score, Reasons: reasons}
	if score >= p.PrefetchCutoff {
		res.IsLikelyPrefetch = true
		res.Confidence = float64(score) / 100
	} else {
		res.Confidence = 1 - float64(score)/100
	}
	return res
}
