package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

// fixtureEntry is one object of a Django fixture dump
type fixtureEntry struct {
	Model  string                     `json:"model"`
	PK     json.RawMessage            `json:"pk"`
	Fields map[string]json.RawMessage `json:"fields"`
}

func loadFixture(path string) ([]fixtureEntry, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: --path is required for the dummy provider", ErrMissingOption)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var entries []fixtureEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return entries, nil
}

// str renders a fixture value as text. Strings are unquoted, JSON
// structures are kept verbatim and null becomes "".
func (e fixtureEntry) str(key string) string {
	return rawString(e.Fields[key])
}

func (e fixtureEntry) num(key string) int {
	n, _ := strconv.Atoi(rawString(e.Fields[key]))
	return n
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// DummyLawProvider serves law books and laws from a fixture file
type DummyLawProvider struct {
	entries []fixtureEntry
	books   map[string][2]string // book pk -> code, revision date
}

// NewDummyLawProvider loads the fixture at path
func NewDummyLawProvider(path string) (*DummyLawProvider, error) {
	entries, err := loadFixture(path)
	if err != nil {
		return nil, err
	}

	p := &DummyLawProvider{entries: entries, books: make(map[string][2]string)}
	for _, e := range entries {
		if e.Model == "laws.lawbook" {
			p.books[rawString(e.PK)] = [2]string{e.str("code"), e.str("revision_date")}
		}
	}
	return p, nil
}

// Source is empty so the delivery pass attaches no attribution
func (p *DummyLawProvider) Source() model.Source { return model.Source{} }

func (p *DummyLawProvider) GetLawBooks(ctx context.Context) ([]model.LawBook, error) {
	var books []model.LawBook
	for _, e := range p.entries {
		if e.Model != "laws.lawbook" {
			continue
		}
		books = append(books, model.LawBook{
			Code:         e.str("code"),
			Title:        e.str("title"),
			RevisionDate: e.str("revision_date"),
			Order:        e.num("order"),
			Changelog:    e.str("changelog"),
			Footnotes:    e.str("footnotes"),
			Sections:     e.str("sections"),
		})
	}
	return books, nil
}

func (p *DummyLawProvider) GetLaws(ctx context.Context, bookCode, revisionDate string) ([]model.Law, error) {
	matching := make(map[string]bool)
	for pk, book := range p.books {
		if book[0] == bookCode && book[1] == revisionDate {
			matching[pk] = true
		}
	}

	var laws []model.Law
	for _, e := range p.entries {
		if e.Model != "laws.law" || !matching[e.str("book")] {
			continue
		}
		laws = append(laws, model.Law{
			BookCode:     bookCode,
			RevisionDate: revisionDate,
			Section:      e.str("section"),
			Title:        e.str("title"),
			Content:      e.str("content"),
			Slug:         e.str("slug"),
			Order:        e.num("order"),
			Amtabk:       e.str("amtabk"),
			Kurzue:       e.str("kurzue"),
			Doknr:        e.str("doknr"),
			Footnotes:    e.str("footnotes"),
		})
	}
	return laws, nil
}

// DummyCaseProvider serves cases from a fixture file
type DummyCaseProvider struct {
	entries []fixtureEntry
	courts  map[string]string // court pk -> name
}

// NewDummyCaseProvider loads the fixture at path
func NewDummyCaseProvider(path string) (*DummyCaseProvider, error) {
	entries, err := loadFixture(path)
	if err != nil {
		return nil, err
	}

	p := &DummyCaseProvider{entries: entries, courts: make(map[string]string)}
	for _, e := range entries {
		if e.Model == "courts.court" {
			p.courts[rawString(e.PK)] = e.str("name")
		}
	}
	return p, nil
}

func (p *DummyCaseProvider) Source() model.Source { return model.Source{} }

func (p *DummyCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	var cases []model.Case
	for _, e := range p.entries {
		if e.Model != "cases.case" {
			continue
		}
		courtPK := e.str("court")
		courtName, ok := p.courts[courtPK]
		if !ok {
			courtName = fmt.Sprintf("Unknown court (pk=%s)", courtPK)
		}
		cases = append(cases, model.Case{
			CourtName:  courtName,
			FileNumber: e.str("file_number"),
			Date:       e.str("date"),
			Content:    e.str("content"),
			Type:       e.str("type"),
			ECLI:       e.str("ecli"),
			Abstract:   e.str("abstract"),
			Title:      e.str("title"),
		})
	}
	return cases, nil
}
