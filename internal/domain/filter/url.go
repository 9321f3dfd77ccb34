// internal/domain/filter/url.go

package filter

import (
	"net/url"
	"strconv"
	"strings"
)

// Query string keys. They mirror State one to one.
const (
	KeyYear         = "ano"
	KeyOffice       = "cargo"
	KeyMunicipality = "municipio"
	KeyNeighborhood = "bairro"
	KeyZone         = "zona"
	KeyParty        = "partido"
	KeyCandidate    = "candidato"
	KeyHeatmap      = "calor"
	KeyMarkers      = "marcadores"
)

// Decode builds a State from a raw query string. Absent values take the
// defaults, and unknown or malformed values are ignored rather than
// reported.
func Decode(rawQuery string) State {
	s := Default()

	// ParseQuery keeps every pair it could parse even when it returns an
	// error, which is exactly the tolerance we want.
	values, _ := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))

	if y, err := strconv.Atoi(values.Get(KeyYear)); err == nil && Year(y).Valid() {
		s.Year = Year(y)
	}
	if o, ok := ParseOffice(values.Get(KeyOffice)); ok {
		s.Office = o
	}
	s.Municipality = strings.TrimSpace(values.Get(KeyMunicipality))
	s.Neighborhood = strings.TrimSpace(values.Get(KeyNeighborhood))
	s.Zone = strings.TrimSpace(values.Get(KeyZone))
	s.Party = strings.TrimSpace(values.Get(KeyParty))
	if n, err := strconv.Atoi(values.Get(KeyCandidate)); err == nil && n > 0 {
		s.CandidateNumber = n
	}
	if v := values.Get(KeyHeatmap); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			s.ShowHeatmap = on
		}
	}
	if v := values.Get(KeyMarkers); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			s.ShowMarkers = on
		}
	}

	return s
}

// Encode renders a State as a query string without the leading "?".
// Keys are written in a fixed order and empty fields are omitted. The
// layer toggles are written only when switched off. The state is
// normalised first.
func Encode(s State) string {
	s = s.Normalize()
	var b strings.Builder
	add := func(key, value string) {
		if value == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	if s.Year.Valid() {
		add(KeyYear, strconv.Itoa(int(s.Year)))
	}
	if s.Office.Valid() {
		add(KeyOffice, string(s.Office))
	}
	add(KeyMunicipality, s.Municipality)
	add(KeyNeighborhood, s.Neighborhood)
	add(KeyZone, s.Zone)
	add(KeyParty, s.Party)
	if s.HasCandidate() {
		add(KeyCandidate, strconv.Itoa(s.CandidateNumber))
	}
	if !s.ShowHeatmap {
		add(KeyHeatmap, "0")
	}
	if !s.ShowMarkers {
		add(KeyMarkers, "0")
	}

	return b.String()
}

// wantsDefaultView reports whether a raw query names neither an office
// nor a candidate, the condition for the one-time default view.
func wantsDefaultView(rawQuery string) bool {
	values, _ := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	return values.Get(KeyOffice) == "" && values.Get(KeyCandidate) == ""
}
