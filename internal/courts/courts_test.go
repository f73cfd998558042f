package courts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMissing(t *testing.T) {
	lines := []string{
		`2026-01-15 ERROR [oldp] {'court_name': 'Could not resolve court from name: LG Hamburg'}`,
		`ERROR Could not resolve court from name: Schleswig-Holsteinisches Oberlandesgericht`,
		`ERROR {"detail": "Could not resolve court from name: LG Hamburg"}`,
		`ERROR Could not resolve court from name: Schleswig-Holsteinisches Oberlandesgericht   `,
		`ERROR Could not resolve court from name: Schleswig-Holsteinisches Oberlandesgericht`,
		`INFO created case I ZR 1/24`,
		`ERROR Could not resolve court from name:    `,
	}
	got := ParseMissing(lines)
	assert.Equal(t, []Missing{
		{Name: "Schleswig-Holsteinisches Oberlandesgericht", Count: 3},
		{Name: "LG Hamburg", Count: 2},
	}, got)
}

func TestTypeCode(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"OLG Hamm", "OLG"},
		{"LG Hamburg", "LG"},
		{"BVerfG", "BVerfG"},
		{"Schleswig-Holsteinisches Oberlandesgericht", "OLG"},
		{"Verwaltungsgerichtshof Baden-Württemberg", "VGH"},
		{"Verfassungsgericht des Landes Brandenburg", "VERFG"},
		{"Rheinschifffahrtsobergericht Köln", "RSCHOG"},
		{"Amtsgericht Pirna", "AG"},
		{"Europäischer Gerichtshof", "EuGH"},
		{"Schiedsstelle Berlin", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeCode(tt.name))
		})
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		name, code, want string
	}{
		{"OLG Hamm", "OLG", "Hamm"},
		{"Schleswig-Holsteinisches Oberlandesgericht", "OLG", "Schleswig-Holsteinisches"},
		{"Verfassungsgericht des Landes Brandenburg", "VERFG", "Brandenburg"},
		{"Oberverwaltungsgericht der Freien Hansestadt Bremen", "OVG", "Bremen"},
		{"Schiedsstelle - Berlin", "", "Schiedsstelle - Berlin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Location(tt.name, tt.code))
		})
	}
}

func testData() ([]Court, []State) {
	courts := CourtsFromAPI([]map[string]any{
		{"name": "Amtsgericht Hamm", "code": "AGHAMM", "court_type": "AG", "city_name": "Hamm", "state": float64(10)},
		{"name": "Landgericht Kiel", "code": "LGKIEL", "court_type": "LG", "city_name": "Kiel", "state": float64(15)},
		{"name": "Bundesgerichtshof", "code": "BGH", "court_type": "BGH", "city_name": nil, "state": nil},
	})
	states := StatesFromAPI([]map[string]any{
		{"id": float64(10), "name": "Nordrhein-Westfalen"},
		{"id": float64(15), "name": "Schleswig-Holstein"},
	})
	return courts, states
}

func TestAnalyze(t *testing.T) {
	courts, states := testData()
	missing := []Missing{
		{Name: "OLG Hamm", Count: 4},
		{Name: "Schleswig-Holsteinisches Oberlandesgericht", Count: 2},
		{Name: "Schiedsstelle", Count: 1},
	}

	got := Analyze(missing, courts, states)
	require.Len(t, got, 3)

	hamm := got[0]
	assert.Equal(t, "OLG", hamm.TypeCode)
	assert.Equal(t, "Oberlandesgericht", hamm.TypeLabel)
	assert.Equal(t, "Hamm", hamm.Location)
	require.Len(t, hamm.CityCourts, 1)
	assert.Equal(t, "AGHAMM", hamm.CityCourts[0].Code)

	sh := got[1]
	assert.Empty(t, sh.CityCourts)
	assert.Equal(t, "schleswig-holstein", sh.MatchedState)
	require.Len(t, sh.StateCourts, 1)
	assert.Equal(t, "Landgericht Kiel", sh.StateCourts[0].Name)

	none := got[2]
	assert.Empty(t, none.TypeCode)
	assert.Empty(t, none.CityCourts)
	assert.Empty(t, none.StateCourts)
}

func TestFormatTable(t *testing.T) {
	courts, states := testData()
	out := FormatTable(Analyze([]Missing{
		{Name: "OLG Hamm", Count: 4},
		{Name: "Schiedsstelle", Count: 1},
	}, courts, states))

	lines := strings.Split(out, "\n")
	assert.Equal(t, "Missing Courts Analysis: 2 unique court name(s) from 5 error(s)", lines[0])
	assert.Equal(t, strings.Repeat("=", 80), lines[1])
	assert.Contains(t, out, "--- Location: Hamm ---")
	assert.Contains(t, out, "  MISSING: OLG Hamm  (x4)")
	assert.Contains(t, out, "    Type: OLG (Oberlandesgericht) | Location: Hamm")
	assert.Contains(t, out, "      - Amtsgericht Hamm [AGHAMM] type=AG")
	assert.Contains(t, out, "    No matching existing courts found.")
}

func TestFormatTSV(t *testing.T) {
	courts, states := testData()
	out := FormatTSV(Analyze([]Missing{{Name: "OLG Hamm", Count: 4}}, courts, states))

	assert.Equal(t, "name\tcount\ttype_code\ttype_label\tlocation\tcity_matches\tstate_matches\n"+
		"OLG Hamm\t4\tOLG\tOberlandesgericht\tHamm\tAmtsgericht Hamm\t", out)
}
