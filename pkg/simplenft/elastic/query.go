package elastic

// Condition is one clause of a bool query
type Condition map[string]any

// Match builds a match clause
func Match(field string, value any) Condition {
	return Condition{"match": map[string]any{field: value}}
}

// Exists builds an exists clause
func Exists(field string) Condition {
	return Condition{"exists": map[string]any{"field": field}}
}

// Query is a bool query with pagination
type Query struct {
	must    []Condition
	mustNot []Condition
	from    int
	size    int
}

// NewQuery creates an empty query returning the default page
func NewQuery() *Query {
	return &Query{size: 25}
}

// WithMust adds clauses every document must satisfy
func (q *Query) WithMust(conditions ...Condition) *Query {
	q.must = append(q.must, conditions...)
	return q
}

// WithMustNot adds clauses no document may satisfy
func (q *Query) WithMustNot(conditions ...Condition) *Query {
	q.mustNot = append(q.mustNot, conditions...)
	return q
}

// WithPagination sets the page window
func (q *Query) WithPagination(from, size int) *Query {
	q.from = from
	q.size = size
	return q
}

// Body returns the search request body
func (q *Query) Body() map[string]any {
	boolQuery := map[string]any{}
	if len(q.must) > 0 {
		boolQuery["must"] = q.must
	}
	if len(q.mustNot) > 0 {
		boolQuery["must_not"] = q.mustNot
	}
	body := map[string]any{
		"from": q.from,
		"size": q.size,
	}
	if len(boolQuery) > 0 {
		body["query"] = map[string]any{"bool": boolQuery}
	} else {
		body["query"] = map[string]any{"match_all": map[string]any{}}
	}
	return body
}
