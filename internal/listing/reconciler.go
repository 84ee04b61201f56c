// Package listing reconciles a free-text search term and one category filter
// into the single list of countries on screen.
//
// The Reconciler never performs I/O itself. Each input change returns a Step
// telling the owner what to do next: wait out the debounce, run a lookup, or
// simply show the current results. Every lookup carries the sequence number
// it was issued under, and Apply drops anything that is not the latest, so a
// slow response can never overwrite a newer one.
package listing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/atlas/internal/metrics"
	"github.com/five82/atlas/internal/restcountries"
)

// DefaultDebounce is the delay between the last keystroke and the name lookup.
const DefaultDebounce = 400 * time.Millisecond

const searchFailedMessage = "No countries found matching your search."

// StepKind tells the owner of a Reconciler what to do next.
type StepKind int

const (
	// StepIdle means nothing to do.
	StepIdle StepKind = iota
	// StepWait means call Fire(Seq) after Delay.
	StepWait
	// StepFetch means run Query and pass the Result to Apply.
	StepFetch
	// StepShow means Results are final for the current inputs.
	StepShow
)

// Step is the outcome of an input change.
type Step struct {
	Kind  StepKind
	Seq   uint64
	Delay time.Duration
	Query Query
}

// QueryKind distinguishes name lookups from category lookups.
type QueryKind int

const (
	QueryName QueryKind = iota
	QueryCategory
)

// Query describes one lookup against the data source.
type Query struct {
	Seq    uint64
	Kind   QueryKind
	Term   string
	Filter Filter
	// WithCategory asks a name query to also fetch the filter's category,
	// used when the category result for the active filter is not known.
	WithCategory bool
}

// Result is the completed outcome of a Query.
type Result struct {
	Query     Query
	Countries []restcountries.Country
	Category  []restcountries.Country
	Err       error
	ErrKind   QueryKind
}

// Reconciler owns the search term, the active filter, and the visible list.
type Reconciler struct {
	debounce time.Duration
	metrics  metrics.Recorder
	logger   *zap.Logger

	mu      sync.Mutex
	seq     uint64
	pending uint64
	term    string
	filter  Filter
	catalog []restcountries.Country
	// category holds the codes of the last category result for filter; nil
	// when unknown.
	category map[string]struct{}
	results  []restcountries.Country
	message  string
	loading  bool
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithDebounce overrides DefaultDebounce. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithMetrics counts discarded stale results.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns an empty Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		debounce: DefaultDebounce,
		metrics:  metrics.Nop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetCatalog replaces the full collection shown when no input is active.
func (r *Reconciler) SetCatalog(countries []restcountries.Country) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog = sortedCopy(countries)
	if r.showingCatalog() {
		r.results = cloneCountries(r.catalog)
	}
}

// SetSearchTerm records term and returns the next step.
func (r *Reconciler) SetSearchTerm(term string) Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.term = term
	return r.termChanged()
}

// Fire turns an elapsed debounce into a name lookup. Superseded debounces
// return StepIdle.
func (r *Reconciler) Fire(seq uint64) Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq == 0 || seq != r.pending || seq != r.seq {
		return Step{Kind: StepIdle}
	}
	r.pending = 0
	r.loading = true
	q := Query{
		Seq:    seq,
		Kind:   QueryName,
		Term:   strings.TrimSpace(r.term),
		Filter: r.filter,
	}
	if r.filter.Active() && r.category == nil {
		q.WithCategory = true
	}
	return Step{Kind: StepFetch, Seq: seq, Query: q}
}

// SetFilter replaces the active filter. A blank value clears it.
func (r *Reconciler) SetFilter(f Filter) Step {
	r.mu.Lock()
	defer r.mu.Unlock()

	f.Value = strings.TrimSpace(f.Value)
	r.category = nil
	if !f.Active() {
		r.filter = Filter{}
		return r.termChanged()
	}
	r.filter = f
	return r.fetchCategory()
}

// Apply installs a lookup result. It returns false and changes nothing when
// res belongs to a superseded query.
func (r *Reconciler) Apply(res Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res.Query.Seq != r.seq {
		r.metrics.RecordStaleResult()
		r.logger.Debug("discarding stale listing result",
			zap.Uint64("seq", res.Query.Seq),
			zap.Uint64("latest", r.seq),
		)
		return false
	}
	r.loading = false

	if res.Err != nil {
		r.results = []restcountries.Country{}
		r.message = failureMessage(res)
		// A failed category stays unknown so the next name lookup retries it.
		if res.ErrKind == QueryCategory {
			r.category = nil
		}
		r.logger.Info("listing lookup failed",
			zap.String("term", res.Query.Term),
			zap.String("filter", res.Query.Filter.Type.String()),
			zap.String("value", res.Query.Filter.Value),
			zap.Error(res.Err),
		)
		return true
	}

	r.message = ""
	switch res.Query.Kind {
	case QueryCategory:
		r.category = codeSet(res.Countries)
		r.results = narrowByTerm(res.Countries, res.Query.Term)
	default:
		if res.Query.WithCategory {
			r.category = codeSet(res.Category)
		}
		r.results = r.narrowByCategory(res.Countries)
	}
	restcountries.SortByName(r.results)
	return true
}

// Results returns a copy of the visible list.
func (r *Reconciler) Results() []restcountries.Country {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneCountries(r.results)
}

// Message returns the current failure message, if any.
func (r *Reconciler) Message() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message
}

// Loading reports whether a lookup is outstanding.
func (r *Reconciler) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Term returns the current search term.
func (r *Reconciler) Term() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.term
}

// Filter returns the active filter.
func (r *Reconciler) Filter() Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter
}

// Debounce returns the configured debounce delay.
func (r *Reconciler) Debounce() time.Duration {
	return r.debounce
}

func (r *Reconciler) termChanged() Step {
	r.seq++
	r.pending = 0
	if strings.TrimSpace(r.term) == "" {
		if r.filter.Active() {
			return r.fetchCategoryLocked()
		}
		r.loading = false
		r.message = ""
		r.results = cloneCountries(r.catalog)
		return Step{Kind: StepShow, Seq: r.seq}
	}
	r.pending = r.seq
	return Step{Kind: StepWait, Seq: r.seq, Delay: r.debounce}
}

func (r *Reconciler) fetchCategory() Step {
	r.seq++
	r.pending = 0
	return r.fetchCategoryLocked()
}

// fetchCategoryLocked issues a category lookup under the current sequence.
func (r *Reconciler) fetchCategoryLocked() Step {
	r.loading = true
	q := Query{
		Seq:    r.seq,
		Kind:   QueryCategory,
		Term:   strings.TrimSpace(r.term),
		Filter: r.filter,
	}
	return Step{Kind: StepFetch, Seq: r.seq, Query: q}
}

func (r *Reconciler) showingCatalog() bool {
	return strings.TrimSpace(r.term) == "" && !r.filter.Active()
}

func (r *Reconciler) narrowByCategory(countries []restcountries.Country) []restcountries.Country {
	if !r.filter.Active() || r.category == nil {
		return cloneCountries(countries)
	}
	out := make([]restcountries.Country, 0, len(countries))
	for _, c := range countries {
		if _, ok := r.category[c.Code]; ok {
			out = append(out, c)
		}
	}
	return out
}

func failureMessage(res Result) string {
	if res.ErrKind == QueryCategory {
		return fmt.Sprintf("No countries found matching the selected %s.", res.Query.Filter.Type)
	}
	return searchFailedMessage
}

// Execute runs q against source. It never panics on a failed lookup; the
// error travels in the Result.
func Execute(ctx context.Context, source restcountries.Source, q Query) Result {
	res := Result{Query: q}
	if q.Kind == QueryCategory || q.WithCategory {
		category, err := fetchCategory(ctx, source, q.Filter)
		if err != nil {
			res.Err = err
			res.ErrKind = QueryCategory
			return res
		}
		if q.Kind == QueryCategory {
			res.Countries = category
			return res
		}
		res.Category = category
	}
	countries, err := source.FetchByName(ctx, q.Term)
	if err != nil {
		res.Err = err
		res.ErrKind = QueryName
		return res
	}
	res.Countries = countries
	return res
}

func fetchCategory(ctx context.Context, source restcountries.Source, f Filter) ([]restcountries.Country, error) {
	switch f.Type {
	case FilterRegion:
		return source.FetchByRegion(ctx, f.Value)
	case FilterSubregion:
		return source.FetchBySubregion(ctx, f.Value)
	case FilterLanguage:
		return source.FetchByLanguage(ctx, f.Value)
	case FilterCurrency:
		return source.FetchByCurrency(ctx, f.Value)
	default:
		return nil, fmt.Errorf("unsupported filter type %q", f.Type)
	}
}

// Drive runs step to completion synchronously, skipping the debounce wait.
// It returns the error of the final lookup, if any.
func Drive(ctx context.Context, r *Reconciler, source restcountries.Source, step Step) error {
	for {
		switch step.Kind {
		case StepWait:
			step = r.Fire(step.Seq)
		case StepFetch:
			res := Execute(ctx, source, step.Query)
			r.Apply(res)
			return res.Err
		default:
			return nil
		}
	}
}

func narrowByTerm(countries []restcountries.Country, term string) []restcountries.Country {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]restcountries.Country, 0, len(countries))
	for _, c := range countries {
		if needle == "" || strings.Contains(strings.ToLower(c.Name.Common), needle) {
			out = append(out, c)
		}
	}
	return out
}

func codeSet(countries []restcountries.Country) map[string]struct{} {
	set := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		set[c.Code] = struct{}{}
	}
	return set
}

func sortedCopy(countries []restcountries.Country) []restcountries.Country {
	out := cloneCountries(countries)
	restcountries.SortByName(out)
	return out
}

func cloneCountries(list []restcountries.Country) []restcountries.Country {
	out := make([]restcountries.Country, len(list))
	copy(out, list)
	return out
}
