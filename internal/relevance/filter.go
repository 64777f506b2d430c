package relevance

import (
	"regexp"
	"strings"
	"sync"
)

// MinScore is the lowest score an article can carry and still count as
// relevant. Anything below it is kept in storage but excluded from features.
const MinScore = 0.3

// Result is the outcome of scoring one article against one ticker.
type Result struct {
	Relevant bool
	Score    float64
}

var (
	wordRxMu    sync.Mutex
	wordRxCache = map[string]*regexp.Regexp{}
)

// wordRx returns a cached word-boundary matcher for a lowercase term.
func wordRx(term string) *regexp.Regexp {
	wordRxMu.Lock()
	defer wordRxMu.Unlock()
	if rx, ok := wordRxCache[term]; ok {
		return rx
	}
	rx := regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
	wordRxCache[term] = rx
	return rx
}

func containsNoise(text string) bool {
	for _, phrase := range noisePhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func containsFinanceTerm(text string) bool {
	for _, kw := range financeKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Score grades how specific an article is to a ticker:
//
//	1.0  company name and a finance term
//	0.8  ticker symbol and a finance term
//	0.7  company name alone
//	0.6  ticker symbol alone
//	0.4  secondary term (product, executive) and a finance term
//	0.3  secondary term alone
//	0.0  no match, or a noise phrase anywhere in the text
//
// An article is relevant only when a positive term matched AND no noise
// phrase appears; noise zeroes the score even when the company name is
// present. Unconfigured symbols degrade to bare-symbol matching.
func Score(symbol, headline, rawText string) Result {
	text := strings.ToLower(strings.TrimSpace(headline + " " + rawText))
	if text == "" {
		return Result{}
	}
	if containsNoise(text) {
		return Result{}
	}

	symbolLower := strings.ToLower(symbol)
	hasTicker := wordRx(symbolLower).MatchString(text)

	cfg, configured := TermsFor(symbol)
	if !configured {
		if hasTicker {
			return Result{Relevant: true, Score: 0.6}
		}
		return Result{}
	}

	hasFinance := containsFinanceTerm(text)

	hasCompany := false
	if cfg.CompanyName != "" {
		hasCompany = wordRx(strings.ToLower(cfg.CompanyName)).MatchString(text)
	}

	hasSecondary := false
	for _, term := range cfg.Terms {
		if term == cfg.CompanyName || term == symbol {
			continue
		}
		if wordRx(strings.ToLower(term)).MatchString(text) {
			hasSecondary = true
			break
		}
	}

	var score float64
	switch {
	case hasCompany && hasFinance:
		score = 1.0
	case hasTicker && hasFinance:
		score = 0.8
	case hasCompany:
		score = 0.7
	case hasTicker:
		score = 0.6
	case hasSecondary && hasFinance:
		score = 0.4
	case hasSecondary:
		score = MinScore
	default:
		return Result{}
	}

	return Result{Relevant: score >= MinScore, Score: score}
}
