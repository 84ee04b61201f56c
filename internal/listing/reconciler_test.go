package listing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/five82/atlas/internal/restcountries"
)

func c(code, name string) restcountries.Country {
	return restcountries.Country{Code: code, Name: restcountries.Name{Common: name}}
}

var (
	france       = c("FRA", "France")
	frenchGuiana = c("GUF", "French Guiana")
	frenchPoly   = c("PYF", "French Polynesia")
	germany      = c("DEU", "Germany")
	uk           = c("GBR", "United Kingdom")
	usa          = c("USA", "United States")
	uae          = c("ARE", "United Arab Emirates")
	spain        = c("ESP", "Spain")
)

var notFound = &restcountries.APIError{Status: 404, Message: "Not Found"}

// fakeSource answers lookups from fixed tables and records every call.
type fakeSource struct {
	mu       sync.Mutex
	names    map[string][]restcountries.Country
	regions  map[string][]restcountries.Country
	langs    map[string][]restcountries.Country
	fail     map[string]error
	calls    []string
	catalog  []restcountries.Country
	byCodeFn func(code string) (restcountries.Country, error)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		names: map[string][]restcountries.Country{
			"fra":    {frenchPoly, france, frenchGuiana},
			"fr":     {frenchPoly, france, frenchGuiana},
			"united": {usa, uk, uae},
		},
		regions: map[string][]restcountries.Country{
			"Europe": {spain, uk, germany, france},
		},
		langs: map[string][]restcountries.Country{
			"french": {france, frenchPoly, frenchGuiana},
		},
		fail: map[string]error{},
	}
}

func (f *fakeSource) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail[call]
}

func lookup(table map[string][]restcountries.Country, key string) ([]restcountries.Country, error) {
	if list, ok := table[key]; ok {
		out := make([]restcountries.Country, len(list))
		copy(out, list)
		return out, nil
	}
	return nil, notFound
}

func (f *fakeSource) FetchAll(ctx context.Context) ([]restcountries.Country, error) {
	if err := f.record("all"); err != nil {
		return nil, err
	}
	return f.catalog, nil
}

func (f *fakeSource) FetchByName(ctx context.Context, name string) ([]restcountries.Country, error) {
	if err := f.record("name:" + name); err != nil {
		return nil, err
	}
	return lookup(f.names, name)
}

func (f *fakeSource) FetchByRegion(ctx context.Context, region string) ([]restcountries.Country, error) {
	if err := f.record("region:" + region); err != nil {
		return nil, err
	}
	return lookup(f.regions, region)
}

func (f *fakeSource) FetchBySubregion(ctx context.Context, subregion string) ([]restcountries.Country, error) {
	if err := f.record("subregion:" + subregion); err != nil {
		return nil, err
	}
	return nil, notFound
}

func (f *fakeSource) FetchByLanguage(ctx context.Context, language string) ([]restcountries.Country, error) {
	if err := f.record("language:" + language); err != nil {
		return nil, err
	}
	return lookup(f.langs, language)
}

func (f *fakeSource) FetchByCurrency(ctx context.Context, currency string) ([]restcountries.Country, error) {
	if err := f.record("currency:" + currency); err != nil {
		return nil, err
	}
	return nil, notFound
}

func (f *fakeSource) FetchByCapital(ctx context.Context, capital string) ([]restcountries.Country, error) {
	if err := f.record("capital:" + capital); err != nil {
		return nil, err
	}
	return nil, notFound
}

func (f *fakeSource) FetchByCode(ctx context.Context, code string) (restcountries.Country, error) {
	if err := f.record("code:" + code); err != nil {
		return restcountries.Country{}, err
	}
	if f.byCodeFn != nil {
		return f.byCodeFn(code)
	}
	return restcountries.Country{}, notFound
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func names(list []restcountries.Country) []string {
	out := make([]string, 0, len(list))
	for _, country := range list {
		out = append(out, country.Name.Common)
	}
	return out
}

func mustStep(t *testing.T, got Step, want StepKind) Step {
	t.Helper()
	if got.Kind != want {
		t.Fatalf("step kind = %v, want %v (step %#v)", got.Kind, want, got)
	}
	return got
}

func run(t *testing.T, r *Reconciler, src restcountries.Source, step Step) {
	t.Helper()
	step = mustStep(t, step, StepFetch)
	if !r.Apply(Execute(context.Background(), src, step.Query)) {
		t.Fatalf("result for seq %d discarded", step.Seq)
	}
}

func TestSearch_DebouncesThenSortsByName(t *testing.T) {
	src := newFakeSource()
	r := New()

	wait := mustStep(t, r.SetSearchTerm("fra"), StepWait)
	if wait.Delay != 400*time.Millisecond {
		t.Fatalf("delay = %v, want 400ms", wait.Delay)
	}
	if len(src.Calls()) != 0 {
		t.Fatalf("lookup issued before debounce: %v", src.Calls())
	}

	run(t, r, src, r.Fire(wait.Seq))

	want := []string{"France", "French Guiana", "French Polynesia"}
	if diff := cmp.Diff(want, names(r.Results())); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"name:fra"}, src.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if r.Loading() || r.Message() != "" {
		t.Fatalf("loading=%v message=%q after success", r.Loading(), r.Message())
	}
}

func TestSearch_OnlyLatestDebounceFires(t *testing.T) {
	r := New(WithDebounce(10 * time.Millisecond))

	first := r.SetSearchTerm("f")
	second := r.SetSearchTerm("fr")
	third := r.SetSearchTerm("fra")

	mustStep(t, r.Fire(first.Seq), StepIdle)
	mustStep(t, r.Fire(second.Seq), StepIdle)
	step := mustStep(t, r.Fire(third.Seq), StepFetch)
	if step.Query.Term != "fra" || step.Query.Kind != QueryName {
		t.Fatalf("query = %#v", step.Query)
	}
	mustStep(t, r.Fire(third.Seq), StepIdle)
}

func TestFilterThenSearch_Intersects(t *testing.T) {
	src := newFakeSource()
	r := New()

	run(t, r, src, r.SetFilter(Filter{Type: FilterRegion, Value: "Europe"}))
	if diff := cmp.Diff([]string{"France", "Germany", "Spain", "United Kingdom"}, names(r.Results())); diff != "" {
		t.Fatalf("region results mismatch (-want +got):\n%s", diff)
	}

	wait := mustStep(t, r.SetSearchTerm("united"), StepWait)
	fetch := mustStep(t, r.Fire(wait.Seq), StepFetch)
	if fetch.Query.WithCategory {
		t.Fatalf("category refetched although known")
	}
	run(t, r, src, fetch)

	if diff := cmp.Diff([]string{"United Kingdom"}, names(r.Results())); diff != "" {
		t.Fatalf("intersection mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchThenFilter_NarrowsByTerm(t *testing.T) {
	src := newFakeSource()
	r := New()

	wait := r.SetSearchTerm("united")
	run(t, r, src, r.Fire(wait.Seq))
	if got := len(r.Results()); got != 3 {
		t.Fatalf("search results = %d, want 3", got)
	}

	run(t, r, src, r.SetFilter(Filter{Type: FilterRegion, Value: " Europe "}))
	if diff := cmp.Diff([]string{"United Kingdom"}, names(r.Results())); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if got := r.Filter(); got.Value != "Europe" {
		t.Fatalf("filter value not trimmed: %#v", got)
	}
}

func TestClearingFilter_RevertsToSearch(t *testing.T) {
	src := newFakeSource()
	r := New()

	run(t, r, src, r.SetFilter(Filter{Type: FilterRegion, Value: "Europe"}))
	run(t, r, src, r.Fire(r.SetSearchTerm("united").Seq))

	wait := mustStep(t, r.SetFilter(Filter{Type: FilterRegion}), StepWait)
	run(t, r, src, r.Fire(wait.Seq))

	if diff := cmp.Diff([]string{"United Arab Emirates", "United Kingdom", "United States"}, names(r.Results())); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if r.Filter().Active() {
		t.Fatalf("filter still active")
	}
}

func TestClearingBoth_ShowsCatalog(t *testing.T) {
	src := newFakeSource()
	r := New()
	r.SetCatalog([]restcountries.Country{spain, france, germany})

	if diff := cmp.Diff([]string{"France", "Germany", "Spain"}, names(r.Results())); diff != "" {
		t.Fatalf("initial catalog mismatch (-want +got):\n%s", diff)
	}

	run(t, r, src, r.Fire(r.SetSearchTerm("fra").Seq))
	mustStep(t, r.SetSearchTerm("   "), StepShow)
	if diff := cmp.Diff([]string{"France", "Germany", "Spain"}, names(r.Results())); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}

	run(t, r, src, r.SetFilter(Filter{Type: FilterLanguage, Value: "french"}))
	mustStep(t, r.SetFilter(Filter{}), StepShow)
	if got := len(r.Results()); got != 3 {
		t.Fatalf("results = %d, want catalog", got)
	}
}

func TestBlankTermWithFilter_ReappliesCategory(t *testing.T) {
	src := newFakeSource()
	r := New()

	run(t, r, src, r.SetFilter(Filter{Type: FilterRegion, Value: "Europe"}))
	run(t, r, src, r.Fire(r.SetSearchTerm("united").Seq))

	step := mustStep(t, r.SetSearchTerm(""), StepFetch)
	if step.Query.Kind != QueryCategory {
		t.Fatalf("query kind = %v, want category", step.Query.Kind)
	}
	run(t, r, src, step)
	if got := len(r.Results()); got != 4 {
		t.Fatalf("results = %d, want full region", got)
	}
}

func TestStaleResultsAreDiscarded(t *testing.T) {
	src := newFakeSource()
	r := New()
	ctx := context.Background()

	slow := mustStep(t, r.Fire(r.SetSearchTerm("fr").Seq), StepFetch)
	fast := mustStep(t, r.Fire(r.SetSearchTerm("united").Seq), StepFetch)

	if !r.Apply(Execute(ctx, src, fast.Query)) {
		t.Fatalf("latest result discarded")
	}
	if r.Apply(Execute(ctx, src, slow.Query)) {
		t.Fatalf("stale result applied")
	}
	if diff := cmp.Diff([]string{"United Arab Emirates", "United Kingdom", "United States"}, names(r.Results())); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestStaleAcrossInputs(t *testing.T) {
	src := newFakeSource()
	r := New()
	ctx := context.Background()

	search := mustStep(t, r.Fire(r.SetSearchTerm("fra").Seq), StepFetch)
	filter := mustStep(t, r.SetFilter(Filter{Type: FilterRegion, Value: "Europe"}), StepFetch)

	if !r.Apply(Execute(ctx, src, filter.Query)) {
		t.Fatalf("filter result discarded")
	}
	if r.Apply(Execute(ctx, src, search.Query)) {
		t.Fatalf("older search overwrote newer filter")
	}
	if diff := cmp.Diff([]string{"France"}, names(r.Results())); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestTypingBeforeCategoryArrives_FetchesBoth(t *testing.T) {
	src := newFakeSource()
	r := New()
	ctx := context.Background()

	category := mustStep(t, r.SetFilter(Filter{Type: FilterRegion, Value: "Europe"}), StepFetch)
	fetch := mustStep(t, r.Fire(r.SetSearchTerm("united").Seq), StepFetch)
	if !fetch.Query.WithCategory {
		t.Fatalf("name query does not carry the unknown category")
	}
	if r.Apply(Execute(ctx, src, category.Query)) {
		t.Fatalf("superseded category result applied")
	}
	if !r.Apply(Execute(ctx, src, fetch.Query)) {
		t.Fatalf("combined result discarded")
	}
	if diff := cmp.Diff([]string{"United Kingdom"}, names(r.Results())); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestFailures_ClearResultsWithMessage(t *testing.T) {
	src := newFakeSource()
	r := New()
	r.SetCatalog([]restcountries.Country{france})

	run(t, r, src, r.Fire(r.SetSearchTerm("zzzz").Seq))
	if len(r.Results()) != 0 {
		t.Fatalf("results not cleared")
	}
	if r.Message() != "No countries found matching your search." {
		t.Fatalf("message = %q", r.Message())
	}

	run(t, r, src, r.SetFilter(Filter{Type: FilterCurrency, Value: "xyz"}))
	if r.Message() != "No countries found matching the selected currency." {
		t.Fatalf("message = %q", r.Message())
	}
	if r.Loading() {
		t.Fatalf("still loading after failure")
	}

	mustStep(t, r.SetSearchTerm(""), StepFetch)
	mustStep(t, r.SetFilter(Filter{}), StepShow)
	if r.Message() != "" || len(r.Results()) != 1 {
		t.Fatalf("reconciler not usable after failure: %q %v", r.Message(), names(r.Results()))
	}
}

func TestDrive_RunsWithoutWaiting(t *testing.T) {
	src := newFakeSource()
	r := New(WithDebounce(time.Hour))

	if err := Drive(context.Background(), r, src, r.SetSearchTerm("fra")); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if got := len(r.Results()); got != 3 {
		t.Fatalf("results = %d, want 3", got)
	}

	src.fail["name:united"] = errors.New("network down")
	err := Drive(context.Background(), r, src, r.SetSearchTerm("united"))
	if err == nil || !strings.Contains(err.Error(), "network down") {
		t.Fatalf("Drive err = %v", err)
	}
}

func TestFailedCategory_IsRetriedBySearch(t *testing.T) {
	src := newFakeSource()
	r := New(WithDebounce(time.Hour))
	ctx := context.Background()
	europe := Filter{Type: FilterRegion, Value: "Europe"}

	src.fail["region:Europe"] = errors.New("connection reset")
	if err := Drive(ctx, r, src, r.SetFilter(europe)); err == nil {
		t.Fatalf("expected category failure")
	}

	// Still failing: the search reports the category failure instead of an empty list.
	if err := Drive(ctx, r, src, r.SetSearchTerm("united")); err == nil {
		t.Fatalf("expected category failure on search")
	}
	if r.Message() != "No countries found matching the selected region." {
		t.Fatalf("message = %q", r.Message())
	}

	delete(src.fail, "region:Europe")
	if err := Drive(ctx, r, src, r.SetSearchTerm("united")); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if diff := cmp.Diff([]string{"United Kingdom"}, names(r.Results())); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if r.Message() != "" {
		t.Fatalf("message = %q", r.Message())
	}
	want := []string{"region:Europe", "region:Europe", "region:Europe", "name:united"}
	if diff := cmp.Diff(want, src.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFilterTypeAndCycle(t *testing.T) {
	cases := map[string]FilterType{
		"":          FilterNone,
		"None":      FilterNone,
		"region":    FilterRegion,
		"SUBREGION": FilterSubregion,
		"lang":      FilterLanguage,
		"currency":  FilterCurrency,
	}
	for in, want := range cases {
		got, err := ParseFilterType(in)
		if err != nil || got != want {
			t.Fatalf("ParseFilterType(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFilterType("planet"); err == nil {
		t.Fatalf("expected error for unknown type")
	}

	ft := FilterRegion
	var seen []FilterType
	for i := 0; i < 5; i++ {
		seen = append(seen, ft)
		ft = ft.Next()
	}
	want := []FilterType{FilterRegion, FilterSubregion, FilterLanguage, FilterCurrency, FilterRegion}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Fatalf("cycle mismatch (-want +got):\n%s", diff)
	}
}
