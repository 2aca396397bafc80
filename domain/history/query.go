package history

// ScoreField is the pseudo-field used to sort by relevance score.
const ScoreField = "_score"

// Term is an exact-match filter condition.
type Term struct {
	field string
	value any
}

// Field returns the term field name.
func (t Term) Field() string { return t.field }

// Value returns the term value.
func (t Term) Value() any { return t.value }

// MatchClause is a ranked text-match condition. Boost raises the clause's
// contribution to the relevance score relative to other clauses.
type MatchClause struct {
	field string
	text  string
	boost float64
}

// Field returns the matched field name.
func (m MatchClause) Field() string { return m.field }

// Text returns the query text.
func (m MatchClause) Text() string { return m.text }

// Boost returns the clause boost (1 unless set higher).
func (m MatchClause) Boost() float64 { return m.boost }

// SortOrder is a single sort specification. Use ScoreField to sort by
// relevance score.
type SortOrder struct {
	field      string
	descending bool
}

// Field returns the sort field.
func (s SortOrder) Field() string { return s.field }

// Descending returns true for descending order.
func (s SortOrder) Descending() bool { return s.descending }

// SearchQuery is a backend-neutral query description: exact-match terms,
// boosted text-match clauses, an optional query vector, sort orders, and a
// result limit. Adapters translate it to backend-specific syntax; it is
// never persisted.
type SearchQuery struct {
	terms       []Term
	matches     []MatchClause
	vectorField string
	vector      []float64
	sorts       []SortOrder
	limit       int
}

// QueryOption configures a SearchQuery.
type QueryOption func(*SearchQuery)

// WithTerm adds an exact-match condition.
func WithTerm(field string, value any) QueryOption {
	return func(q *SearchQuery) {
		q.terms = append(q.terms, Term{field: field, value: value})
	}
}

// WithMatch adds a boosted text-match clause.
func WithMatch(field, text string, boost float64) QueryOption {
	return func(q *SearchQuery) {
		if boost <= 0 {
			boost = 1
		}
		q.matches = append(q.matches, MatchClause{field: field, text: text, boost: boost})
	}
}

// WithVector adds a query vector for similarity scoring against the given
// vector field. The current history service does not emit vector queries,
// but adapters honor them so k-NN retrieval is not precluded.
func WithVector(field string, vector []float64) QueryOption {
	return func(q *SearchQuery) {
		q.vectorField = field
		q.vector = make([]float64, len(vector))
		copy(q.vector, vector)
	}
}

// WithSortByScore sorts by relevance score, highest first.
func WithSortByScore() QueryOption {
	return WithSortDesc(ScoreField)
}

// WithSortDesc adds a descending sort on a field.
func WithSortDesc(field string) QueryOption {
	return func(q *SearchQuery) {
		q.sorts = append(q.sorts, SortOrder{field: field, descending: true})
	}
}

// WithSortAsc adds an ascending sort on a field.
func WithSortAsc(field string) QueryOption {
	return func(q *SearchQuery) {
		q.sorts = append(q.sorts, SortOrder{field: field})
	}
}

// WithLimit sets the maximum number of hits.
func WithLimit(n int) QueryOption {
	return func(q *SearchQuery) {
		if n > 0 {
			q.limit = n
		}
	}
}

// NewSearchQuery builds a SearchQuery from options.
func NewSearchQuery(opts ...QueryOption) SearchQuery {
	var q SearchQuery
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Terms returns the exact-match conditions.
func (q SearchQuery) Terms() []Term {
	out := make([]Term, len(q.terms))
	copy(out, q.terms)
	return out
}

// Matches returns the text-match clauses.
func (q SearchQuery) Matches() []MatchClause {
	out := make([]MatchClause, len(q.matches))
	copy(out, q.matches)
	return out
}

// Vector returns the query vector and its target field, or false when the
// query carries no vector clause.
func (q SearchQuery) Vector() (string, []float64, bool) {
	if len(q.vector) == 0 {
		return "", nil, false
	}
	vec := make([]float64, len(q.vector))
	copy(vec, q.vector)
	return q.vectorField, vec, true
}

// Sorts returns the sort orders.
func (q SearchQuery) Sorts() []SortOrder {
	out := make([]SortOrder, len(q.sorts))
	copy(out, q.sorts)
	return out
}

// Limit returns the result limit (0 means backend default).
func (q SearchQuery) Limit() int { return q.limit }
