package search_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/retext/retext/internal/importer"
	"github.com/retext/retext/internal/search"
	"github.com/retext/retext/internal/store"
	"github.com/retext/retext/internal/testutil"
)

// stubSearcher records calls and returns canned results.
type stubSearcher struct {
	calls     int
	lastMatch string
	lastLimit int
	lastOff   int
	results   []store.Message
	total     int64
	err       error
}

func (s *stubSearcher) Search(matchExpr string, limit, offset int) ([]store.Message, int64, error) {
	s.calls++
	s.lastMatch = matchExpr
	s.lastLimit = limit
	s.lastOff = offset
	return s.results, s.total, s.err
}

func TestSearchEmptyQuery(t *testing.T) {
	stub := &stubSearcher{}
	engine := search.NewEngine(stub, 50, nil)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := engine.Search(q, 1)
		if !errors.Is(err, search.ErrEmptyQuery) {
			t.Errorf("Search(%q) err = %v, want ErrEmptyQuery", q, err)
		}
	}
	// Validation happens before any store access.
	if stub.calls != 0 {
		t.Errorf("store was queried %d times for empty queries, want 0", stub.calls)
	}
}

func TestSearchPageCoercion(t *testing.T) {
	stub := &stubSearcher{}
	engine := search.NewEngine(stub, 50, nil)

	for _, page := range []int{0, -3} {
		result, err := engine.Search("hello", page)
		testutil.MustNoErr(t, err, "Search")
		if result.Page != 1 {
			t.Errorf("Search(page=%d).Page = %d, want 1", page, result.Page)
		}
		if stub.lastOff != 0 {
			t.Errorf("Search(page=%d) offset = %d, want 0", page, stub.lastOff)
		}
	}
}

func TestSearchSanitizesQuery(t *testing.T) {
	stub := &stubSearcher{}
	engine := search.NewEngine(stub, 50, nil)

	tests := []struct {
		query string
		want  string
	}{
		{"hello world", `"hello world"`},
		{`say "hi"`, `"say ""hi"""`},
		// FTS5 operators are neutralized inside the phrase.
		{"a OR b NOT c", `"a OR b NOT c"`},
		{`x* NEAR(y)`, `"x* NEAR(y)"`},
	}
	for _, tt := range tests {
		_, err := engine.Search(tt.query, 1)
		testutil.MustNoErr(t, err, "Search")
		if stub.lastMatch != tt.want {
			t.Errorf("Search(%q) match expr = %q, want %q", tt.query, stub.lastMatch, tt.want)
		}
	}
}

func TestSearchOpaqueFailure(t *testing.T) {
	stub := &stubSearcher{err: errors.New("fts5 syntax error near \"secret internals\"")}
	engine := search.NewEngine(stub, 50, nil)

	_, err := engine.Search("hello", 1)
	if !errors.Is(err, search.ErrSearchFailed) {
		t.Fatalf("err = %v, want ErrSearchFailed", err)
	}
	// Internal detail must not leak through the returned error.
	if strings.Contains(err.Error(), "secret internals") {
		t.Errorf("internal error text leaked: %v", err)
	}
}

func TestSearchHasMore(t *testing.T) {
	tests := []struct {
		total int64
		page  int
		want  bool
	}{
		{0, 1, false},
		{50, 1, false},
		{51, 1, true},
		{100, 2, false},
		{101, 2, true},
	}
	for _, tt := range tests {
		stub := &stubSearcher{total: tt.total}
		engine := search.NewEngine(stub, 50, nil)
		result, err := engine.Search("x", tt.page)
		testutil.MustNoErr(t, err, "Search")
		if result.HasMore != tt.want {
			t.Errorf("total=%d page=%d: HasMore = %v, want %v", tt.total, tt.page, result.HasMore, tt.want)
		}
	}
}

func insertFixture(t *testing.T, st *store.Store, address, body string, ts int64) {
	t.Helper()
	_, err := st.InsertIfAbsent(&store.Message{
		Address:     address,
		Body:        body,
		Timestamp:   ts,
		MessageType: 1,
		Fingerprint: importer.Fingerprint(ts, address, body),
	})
	testutil.MustNoErr(t, err, "insert fixture")
}

func TestSearchPartyScenario(t *testing.T) {
	st := testutil.NewTestStore(t)
	bodies := []string{
		"lunch tomorrow?",
		"did you see the game",
		"the party starts at nine",
		"call me back",
		"package delivered",
	}
	for i, body := range bodies {
		insertFixture(t, st, fmt.Sprintf("+1555%04d", i), body, int64(1000+i))
	}

	engine := search.NewEngine(st, 50, nil)
	result, err := engine.Search("party", 1)
	testutil.MustNoErr(t, err, "Search")

	if result.Total != 1 {
		t.Fatalf("total = %d, want 1", result.Total)
	}
	if got := result.Results[0].Body; !strings.Contains(got, "<mark>party</mark>") {
		t.Errorf("body = %q, want highlight around \"party\"", got)
	}
}

func TestSearchPaginationReassembly(t *testing.T) {
	st := testutil.NewTestStore(t)
	const k = 7
	for i := 0; i < k; i++ {
		insertFixture(t, st, "+15550000", fmt.Sprintf("common token number %d", i), int64(1000+i))
	}

	engine := search.NewEngine(st, 3, nil)

	var all []int64
	for page := 1; ; page++ {
		result, err := engine.Search("common", page)
		testutil.MustNoErr(t, err, "Search page")
		for _, r := range result.Results {
			all = append(all, r.ID)
		}
		wantMore := int64(page)*3 < int64(k)
		if result.HasMore != wantMore {
			t.Errorf("page %d: HasMore = %v, want %v", page, result.HasMore, wantMore)
		}
		if !result.HasMore {
			break
		}
	}

	// Full ranked list: newest first, no duplicates or omissions.
	full, _, err := st.Search(`"common"`, k, 0)
	testutil.MustNoErr(t, err, "full search")
	wantIDs := make([]int64, len(full))
	for i, m := range full {
		wantIDs[i] = m.ID
	}
	if diff := cmp.Diff(wantIDs, all); diff != "" {
		t.Errorf("concatenated pages differ from full list (-want +got):\n%s", diff)
	}
}

func TestSearchResultMapping(t *testing.T) {
	st := testutil.NewTestStore(t)
	insertFixture(t, st, "+15550001", "mapping check", 1700000000000)

	engine := search.NewEngine(st, 50, nil)
	result, err := engine.Search("mapping", 1)
	testutil.MustNoErr(t, err, "Search")

	r := result.Results[0]
	if r.Address != "+15550001" {
		t.Errorf("Address = %q", r.Address)
	}
	if r.ContactName != nil {
		t.Errorf("ContactName = %v, want nil for a record without one", *r.ContactName)
	}
	if r.Timestamp != 1700000000000 {
		t.Errorf("Timestamp = %d", r.Timestamp)
	}
	if r.FormattedDate == "" || r.FormattedDate == "Unknown date" {
		t.Errorf("FormattedDate = %q", r.FormattedDate)
	}
}
