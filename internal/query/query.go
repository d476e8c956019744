// Package query turns raw HTTP query parameters into a composed mongo
// retrieval request: filter predicate, sort order, field projection and a
// pagination window. List handlers build it once per request:
//
//	q := query.New(c.QueryParams()).Filter().Sort().Fields().Paginate().Query
//
// The builder itself never fails; a filter on an unknown field simply
// matches nothing, and an out-of-range page returns an empty list.
package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Control keys never become filter fields.
var reserved = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

// Comparison operators accepted in bracket syntax, e.g. price[gte]=100.
var comparisons = map[string]bool{
	"gt":  true,
	"gte": true,
	"lt":  true,
	"lte": true,
}

const (
	defaultLimit = 100
	// versionField is excluded from responses when no explicit projection
	// is requested. Kept for compatibility with documents imported from
	// the previous deployment, which carried a __v counter.
	versionField = "__v"
)

// Query is the fully-configured retrieval request produced by the builder.
type Query struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Skip       int64
	Limit      int64
}

// FindOptions converts the sort/projection/pagination parts into driver
// options for a Find call.
func (q Query) FindOptions() *options.FindOptions {
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	opts.SetSkip(q.Skip)
	opts.SetLimit(q.Limit)
	return opts
}

// Builder derives a Query from request parameters through chained stages.
// Each stage mutates and returns the builder; state depends only on the
// input parameters and is never touched mid-build from outside.
type Builder struct {
	params url.Values
	Query  Query
}

// New creates a builder over the raw parameter mapping with default
// pagination applied.
func New(params url.Values) *Builder {
	return &Builder{
		params: params,
		Query: Query{
			Filter: bson.M{},
			Limit:  defaultLimit,
		},
	}
}

// Filter copies every non-reserved parameter into the filter predicate.
// Bracketed keys translate their operator by prefixing the mongo comparison
// marker: price[gte]=100 becomes {"price": {"$gte": 100}}. Plain keys and
// the explicit [eq] operator become equality matches. Field names are not
// validated against any schema; unknown fields match no documents.
func (b *Builder) Filter() *Builder {
	for key, vals := range b.params {
		if reserved[key] || len(vals) == 0 {
			continue
		}
		field, op, bracketed := splitBracket(key)
		val := coerce(vals[0])
		switch {
		case !bracketed || op == "eq":
			b.Query.Filter[field] = val
		case comparisons[op]:
			cmp, ok := b.Query.Filter[field].(bson.M)
			if !ok {
				cmp = bson.M{}
				b.Query.Filter[field] = cmp
			}
			cmp["$"+op] = val
		default:
			// Unknown operator: keep it untranslated so the filter
			// matches nothing instead of erroring.
			b.Query.Filter[field] = bson.M{op: val}
		}
	}
	return b
}

// Sort parses the sort key as a comma-or-space-separated field list where a
// leading '-' means descending. Absent, the result sorts by creation time,
// newest first.
func (b *Builder) Sort() *Builder {
	raw := b.params.Get("sort")
	fields := splitList(raw)
	if len(fields) == 0 {
		b.Query.Sort = bson.D{{Key: "created_at", Value: -1}}
		return b
	}
	sort := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if strings.HasPrefix(f, "-") {
			dir = -1
			f = strings.TrimPrefix(f, "-")
		}
		if f == "" {
			continue
		}
		sort = append(sort, bson.E{Key: f, Value: dir})
	}
	b.Query.Sort = sort
	return b
}

// Fields parses the fields key into an inclusion projection. Without an
// explicit projection, only the internal version field is excluded.
func (b *Builder) Fields() *Builder {
	fields := splitList(b.params.Get("fields"))
	if len(fields) == 0 {
		b.Query.Projection = bson.M{versionField: 0}
		return b
	}
	proj := bson.M{}
	for _, f := range fields {
		if strings.HasPrefix(f, "-") {
			proj[strings.TrimPrefix(f, "-")] = 0
			continue
		}
		proj[f] = 1
	}
	b.Query.Projection = proj
	return b
}

// Paginate computes the skip/limit window: page defaults to 1, limit to 100.
// Requesting a page beyond the result set yields an empty list, not an error.
func (b *Builder) Paginate() *Builder {
	page := intParam(b.params.Get("page"), 1)
	limit := intParam(b.params.Get("limit"), defaultLimit)
	b.Query.Skip = int64(page-1) * int64(limit)
	b.Query.Limit = int64(limit)
	return b
}

// splitBracket decomposes "price[gte]" into ("price", "gte", true). Keys
// without a well-formed bracket suffix come back unchanged.
func splitBracket(key string) (field, op string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

// splitList splits on commas and whitespace, dropping empties.
func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// coerce interprets a parameter value as the most specific type the filter
// can compare against: integer, float, bool, RFC 3339 timestamp or date,
// falling back to the raw string.
func coerce(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC()
	}
	return s
}

func intParam(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
