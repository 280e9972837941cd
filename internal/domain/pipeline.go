package domain

import (
	"sort"
	"strings"
)

// Statement-format noise stripped from every matched description. These are
// fixed artifacts of the portal's card-purchase line format, not merchant
// configuration.
var noiseTokens = []string{"VISA Purchase", "0505"}

// MatchMerchants keeps the transactions whose description contains any of
// the configured merchant names (case-sensitive substring, OR semantics).
// The input slice is not modified.
func MatchMerchants(txns []Transaction, merchants []string) []Transaction {
	var matched []Transaction
	for _, t := range txns {
		for _, m := range merchants {
			if strings.Contains(t.Description, m) {
				matched = append(matched, t)
				break
			}
		}
	}
	return matched
}

// NormalizeDescription strips the statement noise tokens wherever they
// appear and trims surrounding whitespace. Idempotent.
func NormalizeDescription(s string) string {
	for _, tok := range noiseTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	return strings.TrimSpace(s)
}

// PrepareForLedger runs the full pure pipeline: merchant filter, description
// normalization, then a stable ascending sort by effective date (ties keep
// the portal's own ordering). The result is a fresh slice; the caller's
// transactions are untouched.
func PrepareForLedger(txns []Transaction, merchants []string) []Transaction {
	matched := MatchMerchants(txns, merchants)

	prepared := make([]Transaction, len(matched))
	for i, t := range matched {
		t.Description = NormalizeDescription(t.Description)
		prepared[i] = t
	}

	SortByEffectiveDate(prepared)
	return prepared
}

// SortByEffectiveDate sorts in place, ascending and stable.
func SortByEffectiveDate(txns []Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].EffectiveDate.Before(txns[j].EffectiveDate)
	})
}
