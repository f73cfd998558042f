package sink

import (
	"context"
	"sync"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

// Recorder keeps every written record in memory. Failures can be
// injected per book code, law section and case file number.
type Recorder struct {
	mu       sync.Mutex
	LawBooks []model.LawBook
	Laws     []model.Law
	Cases    []model.Case

	BookErrors map[string]error
	LawErrors  map[string]error
	CaseErrors map[string]error
}

func (r *Recorder) WriteLawBook(ctx context.Context, book model.LawBook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.BookErrors[book.Code]; err != nil {
		return err
	}
	r.LawBooks = append(r.LawBooks, book)
	return nil
}

func (r *Recorder) WriteLaw(ctx context.Context, law model.Law) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.LawErrors[law.Section]; err != nil {
		return err
	}
	r.Laws = append(r.Laws, law)
	return nil
}

func (r *Recorder) WriteCase(ctx context.Context, c model.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.CaseErrors[c.FileNumber]; err != nil {
		return err
	}
	r.Cases = append(r.Cases, c)
	return nil
}
