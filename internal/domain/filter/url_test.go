package filter

import "testing"

func TestDecodeDefaults(t *testing.T) {
	got := Decode("")
	if got != Default() {
		t.Errorf("expected defaults %+v, got %+v", Default(), got)
	}
	if got.Year != Year2022 || got.Office != OfficePresident {
		t.Errorf("unexpected default scope %d/%s", got.Year, got.Office)
	}
}

func TestDecodeIgnoresMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  State
	}{
		{
			name:  "unknown keys",
			query: "foo=bar&zoom=12",
			want:  Default(),
		},
		{
			name:  "bad year",
			query: "ano=1999",
			want:  Default(),
		},
		{
			name:  "non numeric year",
			query: "ano=dois-mil",
			want:  Default(),
		},
		{
			name:  "unknown office",
			query: "cargo=PREFEITO",
			want:  Default(),
		},
		{
			name:  "bad candidate",
			query: "candidato=abc",
			want:  Default(),
		},
		{
			name:  "negative candidate",
			query: "candidato=-5",
			want:  Default(),
		},
		{
			name:  "bad toggle",
			query: "calor=talvez",
			want:  Default(),
		},
		{
			name:  "broken escape keeps the rest",
			query: "municipio=%zz&ano=2018",
			want:  Default().WithYear(Year2018),
		},
		{
			name:  "leading question mark",
			query: "?ano=2018&cargo=SENADOR&candidato=222",
			want:  Default().WithYear(Year2018).WithOffice(OfficeSenator).WithCandidate(222),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode(tt.query); got != tt.want {
				t.Errorf("Decode(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	got := Encode(Default())
	if got != "ano=2022&cargo=PRESIDENTE" {
		t.Errorf("unexpected encoding %q", got)
	}

	s := Default().
		WithOffice(OfficeFederalDeputy).
		WithMunicipality("RIO DE JANEIRO").
		WithCandidate(2222).
		WithMarkers(false)
	got = Encode(s)
	want := "ano=2022&cargo=DEPUTADO+FEDERAL&municipio=RIO+DE+JANEIRO&candidato=2222&marcadores=0"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRoundTrip(t *testing.T) {
	var states []State
	for _, year := range []Year{Year2018, Year2022} {
		for _, office := range Offices {
			for _, candidate := range []int{0, 13, 2222} {
				for _, heat := range []bool{true, false} {
					states = append(states, State{
						Year:            year,
						Office:          office,
						CandidateNumber: candidate,
						ShowHeatmap:     heat,
						ShowMarkers:     !heat,
					})
				}
			}
		}
	}
	states = append(states,
		Default().WithMunicipality("SÃO GONÇALO").WithNeighborhood("ALCÂNTARA").WithZone("123").WithParty("PC do B"),
		Default().WithMunicipality("A&B=C").WithParty("100%"),
		Default().WithNeighborhood("ENGENHO+DE+DENTRO"),
	)

	for _, s := range states {
		encoded := Encode(s)
		if got := Decode(encoded); got != s {
			t.Errorf("round trip failed for %q:\n got  %+v\n want %+v", encoded, got, s)
		}
	}
}

type recordingWriter struct {
	queries []string
}

func (w *recordingWriter) ReplaceQuery(q string) {
	w.queries = append(w.queries, q)
}

func TestURLSyncInitAppliesDefaultViewOnce(t *testing.T) {
	w := &recordingWriter{}
	sync := NewURLSync(w, &DefaultView{Year: Year2022, Office: OfficePresident, Candidate: 22})

	s, applied := sync.Init("")
	if !applied {
		t.Fatal("expected default view on empty URL")
	}
	if s.CandidateNumber != 22 {
		t.Errorf("expected candidate 22, got %d", s.CandidateNumber)
	}
	if len(w.queries) != 1 || w.queries[0] != "ano=2022&cargo=PRESIDENTE&candidato=22" {
		t.Errorf("unexpected URL writes %v", w.queries)
	}

	// A second Init is not an initial mount.
	s, applied = sync.Init("")
	if applied || s.HasCandidate() {
		t.Errorf("default view applied twice: %+v", s)
	}
}

func TestURLSyncInitHonoursURL(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"office only", "cargo=GOVERNADOR"},
		{"candidate only", "candidato=13"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sync := NewURLSync(&recordingWriter{}, &DefaultView{Year: Year2022, Office: OfficePresident, Candidate: 22})
			s, applied := sync.Init(tt.query)
			if applied {
				t.Errorf("default view must not override %q", tt.query)
			}
			if s != Decode(tt.query) {
				t.Errorf("expected decoded state, got %+v", s)
			}
		})
	}
}

func TestURLSyncPushSkipsUnchanged(t *testing.T) {
	w := &recordingWriter{}
	sync := NewURLSync(w, nil)

	s := Default()
	sync.Push(s)
	sync.Push(s)
	sync.Push(s.WithHeatmap(true))
	sync.Push(s.WithZone("9"))

	if len(w.queries) != 2 {
		t.Fatalf("expected 2 writes, got %d: %v", len(w.queries), w.queries)
	}
	if sync.Current() != "ano=2022&cargo=PRESIDENTE&zona=9" {
		t.Errorf("unexpected current query %q", sync.Current())
	}
}

func TestEncodeNormalisesLiteralState(t *testing.T) {
	s := Default()
	s.Municipality = " Rio "
	s.Party = "PT\t"
	s.CandidateNumber = -4

	encoded := Encode(s)
	if encoded != "ano=2022&cargo=PRESIDENTE&municipio=Rio&partido=PT" {
		t.Errorf("unexpected encoding %q", encoded)
	}
	if got, want := Decode(encoded), s.Normalize(); got != want {
		t.Errorf("round trip failed:\n got  %+v\n want %+v", got, want)
	}
	if n := s.Normalize(); n.Municipality != "Rio" || n.CandidateNumber != 0 {
		t.Errorf("unexpected normalised state %+v", n)
	}
}
