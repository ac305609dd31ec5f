package analysis

import "strings"

// Lexicon scores text polarity from weighted sentiment words. The score is
// the mean weight of the polar words found, so it stays in [-1, 1].
type Lexicon struct {
	positive map[string]float64
	negative map[string]float64
	negators map[string]struct{}
}

func NewLexicon() *Lexicon {
	return &Lexicon{
		positive: map[string]float64{
			"surge": 1.0, "soar": 1.0, "skyrocket": 1.0, "moon": 0.9, "breakthrough": 1.0,
			"bullish": 0.95, "rally": 0.95, "boom": 0.95, "ath": 0.9, "breakout": 0.9,
			"outperform": 0.9, "adoption": 0.8, "approve": 0.8, "approval": 0.8,
			"gain": 0.8, "growth": 0.8, "profit": 0.8, "jump": 0.8, "strong": 0.8,
			"boost": 0.8, "success": 0.8, "upgrade": 0.75, "rising": 0.75, "climb": 0.75,
			"recover": 0.7, "rebound": 0.7, "inflow": 0.7, "partnership": 0.7,
			"positive": 0.65, "rise": 0.65, "higher": 0.65, "increase": 0.65,
			"good": 0.65, "great": 0.8, "optimistic": 0.85, "launch": 0.5,
			"opportunity": 0.6, "support": 0.5, "stable": 0.5, "win": 0.8,
		},
		negative: map[string]float64{
			"crash": 1.0, "plunge": 1.0, "collapse": 1.0, "plummet": 0.95,
			"hack": 0.95, "exploit": 0.9, "scam": 0.95, "rug": 0.9, "bankruptcy": 0.95,
			"panic": 0.9, "liquidation": 0.85, "bearish": 0.85, "lawsuit": 0.85,
			"ban": 0.85, "fraud": 0.95, "dump": 0.85, "sell-off": 0.85, "selloff": 0.85,
			"decline": 0.8, "loss": 0.8, "slump": 0.8, "fail": 0.8, "drop": 0.75,
			"fall": 0.75, "weak": 0.75, "outflow": 0.7, "concern": 0.7, "fear": 0.75,
			"risk": 0.65, "volatile": 0.6, "uncertainty": 0.65, "lower": 0.6,
			"negative": 0.6, "bad": 0.7, "dip": 0.55, "correction": 0.5, "delay": 0.5,
		},
		negators: map[string]struct{}{
			"not": {}, "no": {}, "never": {}, "isn't": {}, "wasn't": {}, "don't": {}, "doesn't": {},
		},
	}
}

// Polarity returns the mean signed weight of polar words in text. A negator
// directly before a polar word flips its sign.
func (l *Lexicon) Polarity(text string) float64 {
	words := strings.Fields(strings.ToLower(text))

	var sum float64
	var matches int
	negate := false
	for _, raw := range words {
		word := strings.Trim(raw, ".,!?\"'()[]{}:;$#")
		if _, ok := l.negators[word]; ok {
			negate = true
			continue
		}
		weight, ok := l.weight(word)
		if !ok {
			negate = false
			continue
		}
		if negate {
			weight = -weight * 0.5
		}
		sum += weight
		matches++
		negate = false
	}
	if matches == 0 {
		return 0
	}
	return clamp(sum/float64(matches), -1, 1)
}

func (l *Lexicon) weight(word string) (float64, bool) {
	for _, candidate := range stems(word) {
		if w, ok := l.positive[candidate]; ok {
			return w, true
		}
		if w, ok := l.negative[candidate]; ok {
			return -w, true
		}
	}
	return 0, false
}

// stems yields the word followed by naive suffix-stripped variants.
func stems(word string) []string {
	out := []string{word}
	for _, suffix := range []string{"s", "es", "ed", "d", "ing"} {
		if len(word) > len(suffix)+2 && strings.HasSuffix(word, suffix) {
			out = append(out, strings.TrimSuffix(word, suffix))
		}
	}
	return out
}
