package relevance

// TickerTerms holds the match vocabulary for one tracked company. CompanyName
// and the symbol itself are primary terms; everything else in Terms (products,
// executives) is secondary and scores lower.
type TickerTerms struct {
	CompanyName string
	Terms       []string
}

var tickerTermMap = map[string]TickerTerms{
	"AAPL": {
		CompanyName: "Apple Inc",
		Terms:       []string{"Apple", "Apple Inc", "AAPL", "iPhone", "MacBook", "iPad", "Apple stock", "Tim Cook"},
	},
	"MSFT": {
		CompanyName: "Microsoft",
		Terms:       []string{"Microsoft", "MSFT", "Windows", "Azure", "Xbox", "Microsoft stock", "Satya Nadella"},
	},
	"GOOGL": {
		CompanyName: "Alphabet",
		Terms:       []string{"Google", "Alphabet", "GOOGL", "GOOG", "YouTube", "Google stock", "Sundar Pichai"},
	},
	"AMZN": {
		CompanyName: "Amazon",
		Terms:       []string{"Amazon", "AMZN", "AWS", "Amazon stock", "Jeff Bezos", "Andy Jassy"},
	},
	"META": {
		CompanyName: "Meta Platforms",
		Terms:       []string{"Meta", "Facebook", "META", "Instagram", "WhatsApp", "Meta stock", "Mark Zuckerberg"},
	},
	"TSLA": {
		CompanyName: "Tesla",
		Terms:       []string{"Tesla", "TSLA", "Tesla stock", "Elon Musk", "Model 3", "Model Y", "Model S", "Model X"},
	},
	"NVDA": {
		CompanyName: "NVIDIA",
		Terms:       []string{"NVIDIA", "NVDA", "Nvidia", "NVIDIA stock", "Jensen Huang", "GPU", "AI chips"},
	},
	"JPM": {
		CompanyName: "JPMorgan Chase",
		Terms:       []string{"JPMorgan", "JPM", "JPMorgan Chase", "JPM stock", "Jamie Dimon"},
	},
	"V": {
		CompanyName: "Visa",
		Terms:       []string{"Visa", "V", "Visa Inc", "Visa stock", "credit card", "payment"},
	},
	"JNJ": {
		CompanyName: "Johnson & Johnson",
		Terms:       []string{"Johnson & Johnson", "JNJ", "J&J", "JNJ stock", "pharmaceutical"},
	},
}

// financeKeywords mark a text as financially framed. Matched as plain
// substrings, lowercase.
var financeKeywords = []string{
	"stock", "stocks", "shares", "share", "earnings", "revenue", "profit", "loss",
	"trading", "analyst", "price target", "downgrade", "upgrade", "dividend",
	"buyback", "ipo", "guidance", "quarterly", "annual", "financial", "market",
}

// noisePhrases veto an article outright regardless of term matches. Mostly
// market-research spam, law firm press releases, and geopolitical stories
// that mention tickers in passing.
var noisePhrases = []string{
	"market research report",
	"market research and forecast",
	"market size",
	"market forecast",
	"forecast report",
	"2025-2030",
	"2025-2035",
	"2024-2030",
	"2024-2035",
	"investors have opportunity to join",
	"fraud investigation with the schall law firm",
	"investor alert",
	"class action lawsuit",
	"pomerantz law firm",
	"deloitte technology fast 500",
	"fastest-growing company",
	"ranked number",
	"industry analysis report",
	"global market report",
	"murder of journalist",
	"saudi crown prince",
	"new sanctions",
	"ransomware operations",
	"announces partnership with",
	"announces collaboration with",
	"market research report 2025",
	"market research report 2024",
}

// TermsFor returns the match vocabulary for a symbol. ok is false for
// untracked symbols; callers then fall back to matching the bare symbol.
func TermsFor(symbol string) (TickerTerms, bool) {
	t, ok := tickerTermMap[symbol]
	return t, ok
}
