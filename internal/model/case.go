package model

// Case is a single court decision
type Case struct {
	CourtName  string  `json:"court_name"`         // Free text, resolved or derived per source
	FileNumber string  `json:"file_number"`        // Docket number
	Date       string  `json:"date"`               // ISO YYYY-MM-DD
	Content    string  `json:"content"`            // HTML body
	Type       string  `json:"type,omitempty"`     // Decision kind, e.g. "Urteil" or "Beschluss"
	ECLI       string  `json:"ecli,omitempty"`     // European Case Law Identifier
	Abstract   string  `json:"abstract,omitempty"` // Headnote or guiding principle
	Title      string  `json:"title,omitempty"`    // Optional headline
	Source     *Source `json:"source,omitempty"`   // Attribution, set by the delivery pass
}

// Label identifies the case in log lines
func (c Case) Label() string {
	if c.FileNumber == "" {
		return "?"
	}
	return c.FileNumber
}
