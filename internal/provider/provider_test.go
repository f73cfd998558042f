package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

func testOptions() Options {
	return Options{Transport: transport.Config{Timeout: 5 * time.Second}}
}

// testServer starts handler and returns a client pointed at it
func testServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *transport.Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, testOptions().client(server.URL, false)
}

func TestBaseProviders_NotImplemented(t *testing.T) {
	ctx := context.Background()

	_, err := BaseLawProvider{}.GetLawBooks(ctx)
	assert.ErrorIs(t, err, ErrNotImplemented)
	_, err = BaseLawProvider{}.GetLaws(ctx, "BGB", "2024-01-01")
	assert.ErrorIs(t, err, ErrNotImplemented)
	_, err = BaseCaseProvider{}.GetCases(ctx)
	assert.ErrorIs(t, err, ErrNotImplemented)

	assert.True(t, BaseLawProvider{}.Source().IsZero())
	assert.True(t, BaseCaseProvider{}.Source().IsZero())
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"empty", Options{}, true},
		{"valid range", Options{DateFrom: "2024-01-01", DateTo: "2024-12-31"}, true},
		{"german from", Options{DateFrom: "01.01.2024"}, false},
		{"impossible to", Options{DateTo: "2024-13-01"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidDate)
			}
		})
	}
}

func TestCollector_Limit(t *testing.T) {
	c := &collector{limit: 2}
	assert.False(t, c.add(model.Case{FileNumber: "1"}))
	assert.True(t, c.add(model.Case{FileNumber: "2"}))
	assert.Len(t, c.cases, 2)

	unlimited := &collector{}
	for i := 0; i < 100; i++ {
		assert.False(t, unlimited.add(model.Case{}))
	}
}

func TestPaginate_StopsAfterTwoEmptyPages(t *testing.T) {
	pages := map[int][]string{1: {"a", "b"}, 2: {"c"}, 3: {"d"}}
	var requested []int
	var visited []string

	hit := paginate(context.Background(), slog.Default(), 1, 0,
		func(ctx context.Context, page int) ([]string, error) {
			requested = append(requested, page)
			return pages[page], nil
		},
		func(ctx context.Context, id string) bool {
			visited = append(visited, id)
			return false
		})

	assert.False(t, hit)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, requested)
	assert.Equal(t, []string{"a", "b", "c", "d"}, visited)
}

func TestPaginate_EmptyPageResetsCounter(t *testing.T) {
	pages := map[int][]string{1: {"a"}, 3: {"b"}}
	var requested []int

	paginate(context.Background(), slog.Default(), 1, 0,
		func(ctx context.Context, page int) ([]string, error) {
			requested = append(requested, page)
			return pages[page], nil
		},
		func(ctx context.Context, id string) bool { return false })

	assert.Equal(t, []int{1, 2, 3, 4, 5}, requested)
}

func TestPaginate_ErrorAndLastPage(t *testing.T) {
	var requested []int
	paginate(context.Background(), slog.Default(), 0, 0,
		func(ctx context.Context, page int) ([]string, error) {
			requested = append(requested, page)
			if page == 1 {
				return nil, errors.New("boom")
			}
			return []string{"x"}, nil
		},
		func(ctx context.Context, id string) bool { return false })
	assert.Equal(t, []int{0, 1}, requested)

	requested = nil
	paginate(context.Background(), slog.Default(), 1, 3,
		func(ctx context.Context, page int) ([]string, error) {
			requested = append(requested, page)
			return []string{fmt.Sprint(page)}, nil
		},
		func(ctx context.Context, id string) bool { return false })
	assert.Equal(t, []int{1, 2, 3}, requested)
}

func TestPaginate_LimitReached(t *testing.T) {
	out := &collector{limit: 3}
	hit := paginate(context.Background(), slog.Default(), 1, 0,
		func(ctx context.Context, page int) ([]string, error) {
			return []string{"a", "b"}, nil
		},
		func(ctx context.Context, id string) bool {
			return out.add(model.Case{FileNumber: id})
		})

	assert.True(t, hit)
	assert.Len(t, out.cases, 3)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{"dummy", "ris"}, r.Names(KindLaws))

	cases := r.Names(KindCases)
	for _, name := range []string{"dummy", "ris", "rii", "by", "nrw", "ns", "eu", "hb", "sn", "sn-ovg", "sn-verfgh", "juris-bb", "juris-th"} {
		assert.Contains(t, cases, name)
	}
	assert.Len(t, cases, 21)
	assert.IsNonDecreasing(t, cases)
}

func TestRegistry_UnknownAndInvalid(t *testing.T) {
	r := NewRegistry()

	_, err := r.CaseProvider("nope", Options{})
	assert.ErrorIs(t, err, ErrUnknownProvider)
	_, err = r.LawProvider("rii", Options{})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = r.CaseProvider("ris", Options{DateFrom: "2024/01/01"})
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = r.LawProvider("dummy", Options{})
	assert.ErrorIs(t, err, ErrMissingOption)
}

func TestRegistry_Sources(t *testing.T) {
	r := NewRegistry()

	sources := make(map[string]model.Source)
	for _, info := range r.List() {
		if info.Kind == KindCases {
			sources[info.Name] = info.Source
		}
	}

	assert.True(t, sources["dummy"].IsZero())
	assert.Equal(t, "Rechtsinformationssystem des Bundes (RIS)", sources["ris"].Name)
	assert.Equal(t, "https://eur-lex.europa.eu/", sources["eu"].Homepage)
	assert.Equal(t, model.Source{Name: "Landesrecht Hamburg", Homepage: "https://www.landesrecht-hamburg.de"}, sources["juris-hh"])

	p, err := r.CaseProvider("sn-ovg", testOptions())
	require.NoError(t, err)
	assert.Equal(t, sources["sn-ovg"], p.Source())
}

type closeCounter struct{ closed int }

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestClose(t *testing.T) {
	c := &closeCounter{}
	require.NoError(t, Close(c))
	assert.Equal(t, 1, c.closed)
	assert.NoError(t, Close(BaseCaseProvider{}))
}
