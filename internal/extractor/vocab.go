package extractor

import "strings"

// Canonical ticket types the engine tracks price history for. Free-text
// labels from sources are folded into these; anything else lands in the
// unmatched-ticket-type queue.
const (
	TicketAdult    = "ADULT"
	TicketChild    = "CHILD"
	TicketSenior   = "SENIOR"
	TicketStudent  = "STUDENT"
	TicketMilitary = "MILITARY"
	TicketMember   = "MEMBER"
)

// ticketVocab maps normalized source labels to canonical ticket types.
var ticketVocab = map[string]string{
	"adult":             TicketAdult,
	"adults":            TicketAdult,
	"general":           TicketAdult,
	"general admission": TicketAdult,
	"ga":                TicketAdult,
	"child":             TicketChild,
	"children":          TicketChild,
	"kid":               TicketChild,
	"kids":              TicketChild,
	"senior":            TicketSenior,
	"seniors":           TicketSenior,
	"senior citizen":    TicketSenior,
	"65+":               TicketSenior,
	"student":           TicketStudent,
	"students":          TicketStudent,
	"military":          TicketMilitary,
	"veteran":           TicketMilitary,
	"member":            TicketMember,
	"members":           TicketMember,
	"rewards member":    TicketMember,
}

// plfTokens are format markers that identify a premium large format: large
// screens, premium projection or premium sound. Matched as substrings of the
// upper-cased format label.
var plfTokens = []string{
	"IMAX", "DOLBY", "ATMOS", "RPX", "XD", "ULTRASCREEN",
	"SCREENX", "4DX", "PRIME", "70MM",
}

// canonicalTicketType folds a free-text label into the vocabulary. The
// second return value is false for labels outside it.
func canonicalTicketType(label string) (string, bool) {
	t, ok := ticketVocab[normalizeLabel(label)]
	return t, ok
}

// isPLF reports whether the format label names a premium large format.
func isPLF(format string) bool {
	up := strings.ToUpper(format)
	for _, tok := range plfTokens {
		if strings.Contains(up, tok) {
			return true
		}
	}
	return false
}

// normalizeLabel lower-cases and collapses internal whitespace so matching
// tolerates the usual source sloppiness.
func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
