// Package courts analyses "court not found" errors from ingestion logs
// against the courts, cities and states known to an OLDP instance.
package courts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// CourtType is a German court type with its full name and aliases
type CourtType struct {
	Code    string
	Name    string
	Aliases []string
}

// Types lists the German court types by code
var Types = []CourtType{
	{Code: "AG", Name: "Amtsgericht"},
	{Code: "ARBG", Name: "Arbeitsgericht"},
	{Code: "BAG", Name: "Bundesarbeitsgericht"},
	{Code: "BGH", Name: "Bundesgerichtshof"},
	{Code: "BFH", Name: "Bundesfinanzhof"},
	{Code: "BSG", Name: "Bundessozialgericht"},
	{Code: "BVerfG", Name: "Bundesverfassungsgericht"},
	{Code: "BVerwG", Name: "Bundesverwaltungsgericht"},
	{Code: "BPatG", Name: "Bundespatentgericht"},
	{Code: "FG", Name: "Finanzgericht"},
	{Code: "LAG", Name: "Landesarbeitsgericht"},
	{Code: "LSG", Name: "Landessozialgericht"},
	{Code: "LVG", Name: "Landesverfassungsgericht"},
	{Code: "LBGH", Name: "Landesberufsgericht"},
	{Code: "LG", Name: "Landgericht"},
	{Code: "OLG", Name: "Oberlandesgericht"},
	{Code: "OBLG", Name: "Oberstes Landesgericht"},
	{Code: "OVG", Name: "Oberverwaltungsgericht"},
	{Code: "SG", Name: "Sozialgericht"},
	{Code: "STGH", Name: "Staatsgerichtshof"},
	{Code: "SCHG", Name: "Schifffahrtsgericht"},
	{Code: "SCHOG", Name: "Schifffahrtsobergericht"},
	{Code: "VERFG", Name: "Verfassungsgerichtshof", Aliases: []string{"Verfassungsgericht"}},
	{Code: "VG", Name: "Verwaltungsgericht"},
	{Code: "VGH", Name: "Verwaltungsgerichtshof"},
	{Code: "KG", Name: "Kammergericht"},
	{Code: "EuGH", Name: "Europäischer Gerichtshof"},
	{Code: "AWG", Name: "Anwaltsgericht", Aliases: []string{"Anwaltsgerichtshof"}},
	{Code: "MSCHOG", Name: "Moselschifffahrtsobergericht"},
	{Code: "RSCHGD", Name: "Rheinschifffahrtsgericht"},
	{Code: "RSCHOG", Name: "Rheinschifffahrtsobergericht"},
}

// words between the type name and the location
var fillerWords = []string{
	"für das Land",
	"des Landes",
	"des Freistaates",
	"des Saarlandes",
	"der Freien Hansestadt",
	"der Freien und Hansestadt",
}

var missingPattern = regexp.MustCompile(`Could not resolve court from name:\s*(.+?)(?:['"}]|\s*$)`)

type typeName struct {
	name string
	code string
}

var (
	typesByCode = map[string]CourtType{}
	// full names and aliases, longest first
	typeNames []typeName
	// leading abbreviation patterns in table order
	codePatterns []*regexp.Regexp
	// abbreviation removal patterns by code
	codeStrip = map[string]*regexp.Regexp{}
)

func init() {
	for _, t := range Types {
		typesByCode[t.Code] = t
		typeNames = append(typeNames, typeName{t.Name, t.Code})
		for _, a := range t.Aliases {
			typeNames = append(typeNames, typeName{a, t.Code})
		}
		codePatterns = append(codePatterns, regexp.MustCompile(`^\b`+regexp.QuoteMeta(t.Code)+`\b`))
		codeStrip[t.Code] = regexp.MustCompile(`\b` + regexp.QuoteMeta(t.Code) + `\b\s*`)
	}
	sort.SliceStable(typeNames, func(i, j int) bool {
		return len(typeNames[i].name) > len(typeNames[j].name)
	})
}

// Missing is a court name with the number of log lines reporting it
type Missing struct {
	Name  string
	Count int
}

// ParseMissing counts the court names of resolver errors in log lines,
// most frequent first. Ties keep first-seen order.
func ParseMissing(lines []string) []Missing {
	index := map[string]int{}
	var out []Missing
	for _, line := range lines {
		m := missingPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			out[i].Count++
			continue
		}
		index[name] = len(out)
		out = append(out, Missing{Name: name, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// TypeCode returns the court type code of name: a leading abbreviation
// first, then the longest contained full name or alias. It returns "" if
// no type matches.
func TypeCode(name string) string {
	for i, re := range codePatterns {
		if re.MatchString(name) {
			return Types[i].Code
		}
	}
	for _, tn := range typeNames {
		if strings.Contains(name, tn.name) {
			return tn.code
		}
	}
	return ""
}

// Location strips the type abbreviation, names and filler words from name
func Location(name, code string) string {
	loc := name
	if t, ok := typesByCode[code]; ok {
		loc = codeStrip[code].ReplaceAllString(loc, "")
		for _, label := range append([]string{t.Name}, t.Aliases...) {
			loc = strings.ReplaceAll(loc, label, "")
		}
	}
	for _, f := range fillerWords {
		loc = strings.ReplaceAll(loc, f, "")
	}
	return strings.Trim(loc, " -,")
}

// Court is an existing court as returned by /api/courts/
type Court struct {
	Name      string
	Code      string
	CourtType string
	CityName  string
	State     int
}

// State is an entry of /api/states/
type State struct {
	ID   int
	Name string
}

// CourtsFromAPI converts decoded /api/courts/ results
func CourtsFromAPI(items []map[string]any) []Court {
	out := make([]Court, 0, len(items))
	for _, m := range items {
		out = append(out, Court{
			Name:      str(m["name"]),
			Code:      str(m["code"]),
			CourtType: str(m["court_type"]),
			CityName:  str(m["city_name"]),
			State:     num(m["state"]),
		})
	}
	return out
}

// StatesFromAPI converts decoded /api/states/ results
func StatesFromAPI(items []map[string]any) []State {
	out := make([]State, 0, len(items))
	for _, m := range items {
		out = append(out, State{ID: num(m["id"]), Name: str(m["name"])})
	}
	return out
}

func str(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func num(v any) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}

// Analysis is the report entry of one missing court name
type Analysis struct {
	Name         string
	Count        int
	TypeCode     string
	TypeLabel    string
	Location     string
	CityCourts   []Court
	StateCourts  []Court
	MatchedState string
}

// normalize lower-cases s and drops one adjective suffix, so that
// "Schleswig-Holsteinisches" matches "Schleswig-Holstein".
func normalize(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	for _, suffix := range []string{"isches", "ische", "ischer", "isch", "es", "er"} {
		if strings.HasSuffix(t, suffix) && utf8.RuneCountInString(t) > len(suffix)+2 {
			return strings.TrimSuffix(t, suffix)
		}
	}
	return t
}

// Analyze matches each missing name against courts in the same city
// and, by location, in the same state
func Analyze(missing []Missing, courts []Court, states []State) []Analysis {
	var cities []string
	byCity := map[string][]Court{}
	for _, c := range courts {
		city := strings.ToLower(c.CityName)
		if city == "" {
			continue
		}
		if _, ok := byCity[city]; !ok {
			cities = append(cities, city)
		}
		byCity[city] = append(byCity[city], c)
	}

	stateName := map[int]string{}
	for _, s := range states {
		stateName[s.ID] = s.Name
	}
	byState := map[string][]Court{}
	for _, c := range courts {
		if name, ok := stateName[c.State]; ok && c.State != 0 {
			key := strings.ToLower(name)
			byState[key] = append(byState[key], c)
		}
	}

	out := make([]Analysis, 0, len(missing))
	for _, m := range missing {
		code := TypeCode(m.Name)
		a := Analysis{Name: m.Name, Count: m.Count, TypeCode: code, Location: Location(m.Name, code)}
		if code != "" {
			a.TypeLabel = typesByCode[code].Name
		}

		loc := strings.ToLower(a.Location)
		for _, city := range cities {
			if strings.Contains(loc, city) || strings.Contains(city, loc) {
				a.CityCourts = append(a.CityCourts, byCity[city]...)
			}
		}

		locNorm := normalize(a.Location)
		for _, s := range states {
			name := strings.ToLower(s.Name)
			sn := normalize(name)
			if sn != "" && (strings.Contains(locNorm, sn) || strings.Contains(sn, locNorm)) {
				a.MatchedState = name
				a.StateCourts = byState[name]
				break
			}
		}
		out = append(out, a)
	}
	return out
}

// FormatTable renders the analyses grouped by location
func FormatTable(analyses []Analysis) string {
	total := 0
	for _, a := range analyses {
		total += a.Count
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Missing Courts Analysis: %d unique court name(s) from %d error(s)\n", len(analyses), total)
	b.WriteString(strings.Repeat("=", 80))

	var locations []string
	groups := map[string][]Analysis{}
	for _, a := range analyses {
		loc := a.Location
		if loc == "" {
			loc = "(unknown)"
		}
		if _, ok := groups[loc]; !ok {
			locations = append(locations, loc)
		}
		groups[loc] = append(groups[loc], a)
	}

	for _, loc := range locations {
		fmt.Fprintf(&b, "\n\n--- Location: %s ---", loc)
		for _, a := range groups[loc] {
			fmt.Fprintf(&b, "\n\n  MISSING: %s  (x%d)", a.Name, a.Count)

			var parts []string
			if a.TypeCode != "" {
				parts = append(parts, fmt.Sprintf("Type: %s (%s)", a.TypeCode, a.TypeLabel))
			}
			if a.Location != "" {
				parts = append(parts, "Location: "+a.Location)
			}
			if len(parts) > 0 {
				b.WriteString("\n    " + strings.Join(parts, " | "))
			}

			switch {
			case len(a.CityCourts) > 0:
				b.WriteString("\n    Existing courts at this location:")
				writeCourts(&b, a.CityCourts)
			case len(a.StateCourts) > 0:
				b.WriteString("\n    Existing courts in this state:")
				writeCourts(&b, a.StateCourts)
			default:
				b.WriteString("\n    No matching existing courts found.")
			}
		}
	}
	return b.String()
}

func writeCourts(b *strings.Builder, courts []Court) {
	for _, c := range courts {
		fmt.Fprintf(b, "\n      - %s [%s] type=%s", orUnknown(c.Name), orUnknown(c.Code), orUnknown(c.CourtType))
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

// FormatTSV renders one tab-separated line per analysis with a header
func FormatTSV(analyses []Analysis) string {
	lines := []string{"name\tcount\ttype_code\ttype_label\tlocation\tcity_matches\tstate_matches"}
	for _, a := range analyses {
		lines = append(lines, strings.Join([]string{
			a.Name,
			fmt.Sprint(a.Count),
			a.TypeCode,
			a.TypeLabel,
			a.Location,
			courtNames(a.CityCourts),
			courtNames(a.StateCourts),
		}, "\t"))
	}
	return strings.Join(lines, "\n")
}

func courtNames(courts []Court) string {
	names := make([]string, len(courts))
	for i, c := range courts {
		names[i] = c.Name
	}
	return strings.Join(names, "; ")
}
