package extractor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cinewatch/showtime-engine/internal/model"
)

func card(title, dataTime, timeText, format string, rows ...string) string {
	var sb strings.Builder
	sb.WriteString(`<div class="showtime-card">`)
	if title != "" {
		fmt.Fprintf(&sb, `<h3 class="film-title">%s</h3>`, title)
	}
	if dataTime != "" {
		fmt.Fprintf(&sb, `<span class="showtime" data-time="%s">%s</span>`, dataTime, timeText)
	} else if timeText != "" {
		fmt.Fprintf(&sb, `<span class="showtime">%s</span>`, timeText)
	}
	if format != "" {
		fmt.Fprintf(&sb, `<span class="format">%s</span>`, format)
	}
	for _, r := range rows {
		sb.WriteString(r)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func priceRow(label, price string) string {
	return fmt.Sprintf(`<div class="price-row"><span class="ticket-type">%s</span><span class="price">%s</span></div>`, label, price)
}

func input(fragments ...string) Input {
	return Input{
		TenantID:    7,
		TheaterName: "Roxy",
		PlayDate:    "2026-08-29",
		KnownFilms:  []string{"Dune: Part Two", "The Iron Giant"},
		Fragments:   fragments,
	}
}

func TestExtractSkipsMalformedBlocksOnly(t *testing.T) {
	var blocks []string
	for i := 0; i < 10; i++ {
		blocks = append(blocks, card("Dune: Part Two", fmt.Sprintf("1%d:00", i), "", "Standard",
			priceRow("Adult", "$15.00")))
	}
	// No film title makes the block malformed.
	blocks = append(blocks, card("", "19:00", "", "Standard", priceRow("Adult", "$15.00")))

	res := New().Extract(input("<html><body>" + strings.Join(blocks, "") + "</body></html>"))

	if len(res.Candidates) != 10 {
		t.Fatalf("candidates = %d, want 10", len(res.Candidates))
	}
	if res.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", res.Skipped)
	}
}

func TestExtractNormalizesShowing(t *testing.T) {
	frag := card("DUNE: PART TWO", "", "7:30 PM", "IMAX",
		priceRow("Adult", "$18.50"),
		priceRow("Seniors", "$14.00"))

	res := New().Extract(input(frag))
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(res.Candidates))
	}
	s := res.Candidates[0].Showing
	if s.FilmTitle != "Dune: Part Two" {
		t.Errorf("film title = %q, want canonical casing", s.FilmTitle)
	}
	if s.Showtime != "19:30" {
		t.Errorf("showtime = %q, want 19:30", s.Showtime)
	}
	if !s.IsPLF {
		t.Error("IMAX format should flag premium large format")
	}
	if s.Daypart != model.DaypartEvening {
		t.Errorf("daypart = %q, want %q", s.Daypart, model.DaypartEvening)
	}
	if len(res.UnmatchedFilms) != 0 {
		t.Errorf("unmatched films = %v, want none", res.UnmatchedFilms)
	}

	prices := res.Candidates[0].Prices
	if len(prices) != 2 {
		t.Fatalf("prices = %d, want 2", len(prices))
	}
	if prices[0].TicketType != TicketAdult || prices[0].PriceCents != 1850 {
		t.Errorf("price[0] = %+v", prices[0])
	}
	if prices[1].TicketType != TicketSenior || prices[1].PriceCents != 1400 {
		t.Errorf("price[1] = %+v", prices[1])
	}
}

func TestExtractPrefersDataTimeAttribute(t *testing.T) {
	frag := card("Dune: Part Two", "21:15", "9:15 PM", "Standard", priceRow("Adult", "$12"))
	res := New().Extract(input(frag))
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(res.Candidates))
	}
	s := res.Candidates[0].Showing
	if s.Showtime != "21:15" {
		t.Errorf("showtime = %q, want 21:15", s.Showtime)
	}
	if s.Daypart != model.DaypartLate {
		t.Errorf("daypart = %q, want %q", s.Daypart, model.DaypartLate)
	}
}

func TestExtractRoutesUnknownLabelsToQueues(t *testing.T) {
	frag := card("Oppenheimer II", "14:00", "", "Standard",
		priceRow("Adult", "$15.00"),
		priceRow("Groupon Voucher", "$9.99"))

	res := New().Extract(input(frag))
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1 (unknown film still ingested)", len(res.Candidates))
	}
	s := res.Candidates[0].Showing
	if s.FilmTitle != "Oppenheimer II" {
		t.Errorf("film title = %q, want verbatim source title", s.FilmTitle)
	}
	if len(res.UnmatchedFilms) != 1 || res.UnmatchedFilms[0] != "Oppenheimer II" {
		t.Errorf("unmatched films = %v", res.UnmatchedFilms)
	}
	if len(res.UnmatchedTicketTypes) != 1 || res.UnmatchedTicketTypes[0] != "Groupon Voucher" {
		t.Errorf("unmatched ticket types = %v", res.UnmatchedTicketTypes)
	}
	// The unknown label contributes no price, but the known one survives.
	if len(res.Candidates[0].Prices) != 1 {
		t.Errorf("prices = %+v, want only the ADULT row", res.Candidates[0].Prices)
	}
	if res.Skipped != 0 {
		t.Errorf("skipped = %d, want 0 (unmatched is not malformed)", res.Skipped)
	}
}

func TestExtractDeduplicatesAcrossFragments(t *testing.T) {
	// A load-more snapshot repeats the first block with an updated price.
	first := card("Dune: Part Two", "19:30", "", "Standard", priceRow("Adult", "$15.00"))
	second := card("Dune: Part Two", "19:30", "", "Standard", priceRow("Adult", "$16.00")) +
		card("The Iron Giant", "12:00", "", "Standard", priceRow("Child", "$8.00"))

	res := New().Extract(input(first, second))
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(res.Candidates))
	}
	if got := res.Candidates[0].Prices[0].PriceCents; got != 1600 {
		t.Errorf("repeated block price = %d, want the later 1600", got)
	}
	if res.Candidates[1].Showing.Daypart != model.DaypartMatinee {
		t.Errorf("12:00 show daypart = %q, want %q", res.Candidates[1].Showing.Daypart, model.DaypartMatinee)
	}
}

func TestExtractEmptyPage(t *testing.T) {
	res := New().Extract(input("<html><body><p>No showtimes for this date.</p></body></html>"))
	if len(res.Candidates) != 0 || res.Skipped != 0 {
		t.Fatalf("empty page: candidates=%d skipped=%d, want 0/0", len(res.Candidates), res.Skipped)
	}
}

func TestParsePriceCents(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "$18.50", want: 1850},
		{in: "18", want: 1800},
		{in: "$1,050.00", want: 105000},
		{in: "US$9.5", want: 950},
		{in: "$.75", want: 75},
		{in: "free", wantErr: true},
		{in: "$12.345", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parsePriceCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parsePriceCents(%q) = %d, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePriceCents(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parsePriceCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseClockText(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "7:30 PM", want: "19:30"},
		{in: "10:15am", want: "10:15"},
		{in: "12:00 AM", want: "00:00"},
		{in: "12:45 PM", want: "12:45"},
		{in: "19:30", want: "19:30"},
		{in: "13:00 PM", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseClockText(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseClockText(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseClockText(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseClockText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalTicketType(t *testing.T) {
	cases := []struct {
		in    string
		want  string
		known bool
	}{
		{in: "Adult", want: TicketAdult, known: true},
		{in: "General  Admission", want: TicketAdult, known: true},
		{in: "kids", want: TicketChild, known: true},
		{in: "VETERAN", want: TicketMilitary, known: true},
		{in: "Groupon Voucher", known: false},
	}
	for _, tc := range cases {
		got, known := canonicalTicketType(tc.in)
		if known != tc.known {
			t.Errorf("canonicalTicketType(%q) known = %v, want %v", tc.in, known, tc.known)
			continue
		}
		if tc.known && got != tc.want {
			t.Errorf("canonicalTicketType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
