package model

// Source attributes a record to the legal-data portal it was taken from
type Source struct {
	Name     string `json:"name"`
	Homepage string `json:"homepage"`
}

// IsZero reports whether the source carries no name and must not be attached
func (s Source) IsZero() bool {
	return s.Name == ""
}

// LawBook is one revision of a statute book (e.g. "BGB" as of a given date)
type LawBook struct {
	Code         string  `json:"code"`                // Short stable identifier, e.g. "BGB"
	Title        string  `json:"title"`               // Full title of the book
	RevisionDate string  `json:"revision_date"`       // ISO date identifying the expression
	Order        int     `json:"order,omitempty"`     // Optional ordering hint
	Changelog    string  `json:"changelog,omitempty"` // Serialized change history
	Footnotes    string  `json:"footnotes,omitempty"` // Serialized footnotes
	Sections     string  `json:"sections,omitempty"`  // Serialized section tree
	Source       *Source `json:"source,omitempty"`    // Attribution, set by the delivery pass
}

// Label identifies the book in log lines
func (b LawBook) Label() string {
	rev := b.RevisionDate
	if rev == "" {
		rev = "?"
	}
	return b.Code + " (" + rev + ")"
}

// Law is an article or section within a LawBook
type Law struct {
	BookCode     string  `json:"book_code"`           // Code of the owning book
	RevisionDate string  `json:"revision_date"`       // Revision of the owning book
	Section      string  `json:"section"`             // Human label, e.g. "§ 1" or "Artikel 12a"
	Title        string  `json:"title"`               // Heading of the section
	Content      string  `json:"content"`             // HTML body
	Slug         string  `json:"slug,omitempty"`      // URL-safe identifier
	Order        int     `json:"order"`               // 1-based position within the book
	Amtabk       string  `json:"amtabk,omitempty"`    // Official abbreviation
	Kurzue       string  `json:"kurzue,omitempty"`    // Short title
	Doknr        string  `json:"doknr,omitempty"`     // Document number at the source
	Footnotes    string  `json:"footnotes,omitempty"` // Serialized footnotes
	Source       *Source `json:"source,omitempty"`    // Attribution, set by the delivery pass
}

// Label identifies the law in log lines
func (l Law) Label() string {
	switch {
	case l.Section != "":
		return l.Section
	case l.Slug != "":
		return l.Slug
	default:
		return "?"
	}
}

// Record limits and defaults shared by providers and the delivery pass
const (
	MaxLawSectionLength = 200
	MaxLawTitleLength   = 200
	MaxFileNumberLength = 100
	MaxCaseTitleLength  = 255
	MaxCourtNameLength  = 255
	MinContentLength    = 10
	DefaultLawTitle     = "Untitled"
)
