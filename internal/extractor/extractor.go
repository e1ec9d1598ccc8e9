// Package extractor parses rendered showtime pages into normalized showing
// and price candidates. Ticket-type labels are folded into a canonical
// vocabulary and film titles are matched tolerantly against the tenant's
// known-film list; anything that cannot be normalized is routed to the
// unmatched queues rather than dropped or guessed. One malformed showing
// block never aborts the page: it is skipped, counted and extraction
// continues.
//
// The expected markup is the engine's normalized showtime layout: blocks
// carrying class "showtime-card" with a "film-title" element, a "showtime"
// element (preferring its data-time attribute), an optional "format" element
// and "price-row" entries pairing a "ticket-type" with a "price".
package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/cinewatch/showtime-engine/internal/model"
)

// Input carries one theater/date's rendered fragments plus the vocabularies
// used for normalization.
type Input struct {
	TenantID    uint64
	TheaterName string
	PlayDate    string   // "2006-01-02"
	KnownFilms  []string // tenant's known-film list, canonical casing
	Fragments   []string // rendered HTML snapshots from the retriever
}

// Result is the outcome of extracting one theater/date. Candidates are
// deduplicated on the showing identity key across fragments (a "load more"
// snapshot repeats earlier blocks). UnmatchedFilms and UnmatchedTicketTypes
// hold verbatim source labels for the curation queues. Skipped counts
// malformed blocks and price rows.
type Result struct {
	Candidates           []model.ShowingCandidate
	UnmatchedFilms       []string
	UnmatchedTicketTypes []string
	Skipped              int
}

// Extractor is stateless apart from its construction-time vocabulary and is
// safe for concurrent use.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses every fragment of in and returns normalized candidates.
// It never fails as a whole: unparsable HTML yields zero candidates for that
// fragment and the skip counter reflects malformed blocks.
func (e *Extractor) Extract(in Input) *Result {
	res := &Result{}
	films := newFilmMatcher(in.KnownFilms)
	seen := make(map[string]int)          // identity key -> index into res.Candidates
	unmatchedFilms := map[string]bool{}   // dedupe queue entries per page
	unmatchedTickets := map[string]bool{} // dedupe queue entries per page

	for _, frag := range in.Fragments {
		doc, err := html.Parse(strings.NewReader(frag))
		if err != nil {
			res.Skipped++
			continue
		}
		for _, block := range findAll(doc, withClass("showtime-card")) {
			cand, rawTitle, skippedRows, ok := e.extractBlock(block, in, films, unmatchedTickets, res)
			res.Skipped += skippedRows
			if !ok {
				res.Skipped++
				continue
			}
			if rawTitle != "" && !unmatchedFilms[rawTitle] {
				unmatchedFilms[rawTitle] = true
				res.UnmatchedFilms = append(res.UnmatchedFilms, rawTitle)
			}
			key := identityKey(cand.Showing)
			if idx, dup := seen[key]; dup {
				mergePrices(&res.Candidates[idx], cand.Prices)
				continue
			}
			seen[key] = len(res.Candidates)
			res.Candidates = append(res.Candidates, cand)
		}
	}
	return res
}

// extractBlock parses one showtime-card. rawTitle is non-empty when the film
// title missed the known-film list. ok is false for a malformed block.
func (e *Extractor) extractBlock(block *html.Node, in Input, films *filmMatcher, unmatchedTickets map[string]bool, res *Result) (cand model.ShowingCandidate, rawTitle string, skippedRows int, ok bool) {
	title := strings.TrimSpace(textOf(firstMatch(block, withClass("film-title"))))
	if title == "" {
		return cand, "", 0, false
	}
	showtime, err := parseShowtime(firstMatch(block, withClass("showtime")))
	if err != nil {
		return cand, "", 0, false
	}
	format := strings.TrimSpace(textOf(firstMatch(block, withClass("format"))))
	if format == "" {
		format = "Standard"
	}

	canonicalTitle, matched := films.match(title)
	if !matched {
		// Unknown title: keep the verbatim title on the showing so price
		// history is not lost while curation is pending.
		canonicalTitle = title
		rawTitle = title
	}

	cand.Showing = model.Showing{
		TenantID:    in.TenantID,
		PlayDate:    in.PlayDate,
		TheaterName: in.TheaterName,
		FilmTitle:   canonicalTitle,
		Showtime:    showtime,
		Format:      format,
		IsPLF:       isPLF(format),
		Daypart:     daypartFor(showtime),
	}

	for _, row := range findAll(block, withClass("price-row")) {
		label := strings.TrimSpace(textOf(firstMatch(row, withClass("ticket-type"))))
		priceText := strings.TrimSpace(textOf(firstMatch(row, withClass("price"))))
		if label == "" || priceText == "" {
			skippedRows++
			continue
		}
		cents, err := parsePriceCents(priceText)
		if err != nil || cents < 0 {
			skippedRows++
			continue
		}
		ticketType, known := canonicalTicketType(label)
		if !known {
			if !unmatchedTickets[label] {
				unmatchedTickets[label] = true
				res.UnmatchedTicketTypes = append(res.UnmatchedTicketTypes, label)
			}
			continue
		}
		cand.Prices = append(cand.Prices, model.PriceCandidate{TicketType: ticketType, PriceCents: cents})
	}
	return cand, rawTitle, skippedRows, true
}

func identityKey(s model.Showing) string {
	return strings.Join([]string{s.PlayDate, s.TheaterName, s.FilmTitle, s.Showtime, s.Format}, "|")
}

// mergePrices folds prices from a repeated block into an existing candidate,
// keeping the last value per ticket type.
func mergePrices(dst *model.ShowingCandidate, prices []model.PriceCandidate) {
	for _, p := range prices {
		replaced := false
		for i := range dst.Prices {
			if dst.Prices[i].TicketType == p.TicketType {
				dst.Prices[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			dst.Prices = append(dst.Prices, p)
		}
	}
}

// parseShowtime reads the showtime element, preferring its data-time
// attribute ("15:04") and falling back to parsing visible text such as
// "7:30 PM".
func parseShowtime(n *html.Node) (string, error) {
	if n == nil {
		return "", fmt.Errorf("showtime element missing")
	}
	for _, attr := range n.Attr {
		if attr.Key == "data-time" {
			if t, err := normalize24h(attr.Val); err == nil {
				return t, nil
			}
		}
	}
	text := strings.TrimSpace(textOf(n))
	if text == "" {
		return "", fmt.Errorf("showtime text missing")
	}
	return parseClockText(text)
}

// normalize24h validates an "HH:MM" string and zero-pads the hour.
func normalize24h(s string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("bad time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("bad hour %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("bad minute %q", s)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// parseClockText converts "7:30 PM" / "10:15am" / "19:30" to 24h "HH:MM".
func parseClockText(s string) (string, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	mer := ""
	for _, suffix := range []string{"AM", "A.M.", "PM", "P.M."} {
		if strings.HasSuffix(up, suffix) {
			mer = string(suffix[0])
			up = strings.TrimSpace(strings.TrimSuffix(up, suffix))
			break
		}
	}
	t, err := normalize24h(up)
	if err != nil {
		return "", err
	}
	if mer == "" {
		return t, nil
	}
	h, _ := strconv.Atoi(t[:2])
	switch {
	case mer == "P" && h < 12:
		h += 12
	case mer == "A" && h == 12:
		h = 0
	case h > 12:
		return "", fmt.Errorf("ambiguous time %q", s)
	}
	return fmt.Sprintf("%02d:%s", h, t[3:]), nil
}

// daypartFor buckets a 24h showtime: before 16:00 is a matinee, before 21:00
// an evening show, later a late show.
func daypartFor(showtime string) string {
	h, err := strconv.Atoi(showtime[:2])
	if err != nil {
		return model.DaypartEvening
	}
	switch {
	case h < 16:
		return model.DaypartMatinee
	case h < 21:
		return model.DaypartEvening
	default:
		return model.DaypartLate
	}
}

// parsePriceCents converts a display price ("$18.50", "18", "1,050.00") to
// integer cents.
func parsePriceCents(s string) (int64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "US$")
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty price")
	}
	whole := cleaned
	frac := "00"
	if i := strings.IndexByte(cleaned, '.'); i >= 0 {
		whole = cleaned[:i]
		frac = cleaned[i+1:]
		if len(frac) == 1 {
			frac += "0"
		}
		if len(frac) != 2 {
			return 0, fmt.Errorf("bad price %q", s)
		}
	}
	if whole == "" {
		whole = "0"
	}
	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad price %q", s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad price %q", s)
	}
	return dollars*100 + cents, nil
}

// filmMatcher performs case/whitespace-insensitive matching against the
// tenant's known-film list, returning the known canonical casing on a hit.
type filmMatcher struct {
	byNorm map[string]string
}

func newFilmMatcher(known []string) *filmMatcher {
	m := &filmMatcher{byNorm: make(map[string]string, len(known))}
	for _, title := range known {
		m.byNorm[normalizeLabel(title)] = title
	}
	return m
}

func (m *filmMatcher) match(title string) (string, bool) {
	canonical, ok := m.byNorm[normalizeLabel(title)]
	return canonical, ok
}

// HTML helpers.

type nodePred func(*html.Node) bool

func withClass(name string) nodePred {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, attr := range n.Attr {
			if attr.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(attr.Val) {
				if c == name {
					return true
				}
			}
		}
		return false
	}
}

// findAll returns matching nodes in document order without descending into
// matches (a showtime-card inside a showtime-card counts once).
func findAll(n *html.Node, pred nodePred) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func firstMatch(n *html.Node, pred nodePred) *html.Node {
	if n == nil {
		return nil
	}
	matches := findAll(n, pred)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
