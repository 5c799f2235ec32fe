package simpleasset

import (
	"bytes"
	"sort"
	"strings"
	"time"
)

// Field identifies a filterable or sortable asset attribute.
type Field string

const (
	FieldUploadDate  Field = "upload_date"
	FieldFilename    Field = "filename"
	FieldContentType Field = "content_type"
	FieldStatus      Field = "status"
	FieldID          Field = "id"
)

// Operator is the comparison a Clause applies.
type Operator string

const (
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpContainsFold   Operator = "contains_fold" // case-insensitive substring
	OpEqualFold      Operator = "equal_fold"    // case-insensitive equality
	OpIn             Operator = "in"
)

// Clause is one independent predicate. A Query is the conjunction of its
// clauses. Value holds a time.Time for date clauses, a string for text
// clauses and a []AssetStatus for OpIn.
type Clause struct {
	Field Field
	Op    Operator
	Value interface{}
}

// Sort is a single-key ordering; ties are broken by ID ascending.
type Sort struct {
	Field     Field
	Direction SortDirection
}

// Query is the store-neutral predicate and sort order built from an AssetFilter.
type Query struct {
	Clauses []Clause
	Sort    Sort
}

// BuildQuery turns an optional filter into a predicate and sort order.
// Absent fields contribute no clause, so a nil or empty filter matches every
// record. The sort defaults to upload date descending.
func BuildQuery(f *AssetFilter) Query {
	q := Query{Sort: Sort{Field: FieldUploadDate, Direction: SortDesc}}
	if f == nil {
		return q
	}

	if f.UploadDateStart != nil {
		q.Clauses = append(q.Clauses, Clause{Field: FieldUploadDate, Op: OpGreaterOrEqual, Value: *f.UploadDateStart})
	}
	if f.UploadDateEnd != nil {
		q.Clauses = append(q.Clauses, Clause{Field: FieldUploadDate, Op: OpLessOrEqual, Value: *f.UploadDateEnd})
	}
	if f.Filename != nil && strings.TrimSpace(*f.Filename) != "" {
		q.Clauses = append(q.Clauses, Clause{Field: FieldFilename, Op: OpContainsFold, Value: *f.Filename})
	}
	if f.ContentType != nil && strings.TrimSpace(*f.ContentType) != "" {
		q.Clauses = append(q.Clauses, Clause{Field: FieldContentType, Op: OpEqualFold, Value: *f.ContentType})
	}
	if len(f.Statuses) > 0 {
		statuses := append([]AssetStatus(nil), f.Statuses...)
		q.Clauses = append(q.Clauses, Clause{Field: FieldStatus, Op: OpIn, Value: statuses})
	}

	q.Sort.Direction = ParseSortDirection(string(f.SortDirection))
	return q
}

// Matches evaluates the conjunction of all clauses against an asset. An
// empty query matches everything.
func (q Query) Matches(a *Asset) bool {
	for _, c := range q.Clauses {
		if !c.Matches(a) {
			return false
		}
	}
	return true
}

// Matches evaluates a single clause. Clauses with an unexpected value type
// match nothing.
func (c Clause) Matches(a *Asset) bool {
	switch c.Field {
	case FieldUploadDate:
		t, ok := c.Value.(time.Time)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGreaterOrEqual:
			return !a.UploadDate.Before(t)
		case OpLessOrEqual:
			return !a.UploadDate.After(t)
		}
	case FieldFilename:
		s, ok := c.Value.(string)
		if ok && c.Op == OpContainsFold {
			return strings.Contains(strings.ToLower(a.Filename), strings.ToLower(s))
		}
	case FieldContentType:
		s, ok := c.Value.(string)
		if ok && c.Op == OpEqualFold {
			return strings.EqualFold(a.ContentType, s)
		}
	case FieldStatus:
		statuses, ok := c.Value.([]AssetStatus)
		if ok && c.Op == OpIn {
			for _, st := range statuses {
				if a.Status == st {
					return true
				}
			}
		}
	}
	return false
}

// Less reports whether a sorts before b under this query's order.
func (q Query) Less(a, b *Asset) bool {
	if !a.UploadDate.Equal(b.UploadDate) {
		if q.Sort.Direction == SortAsc {
			return a.UploadDate.Before(b.UploadDate)
		}
		return a.UploadDate.After(b.UploadDate)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// Apply filters and orders assets in memory. The input slice is not modified.
func (q Query) Apply(assets []*Asset) []*Asset {
	result := make([]*Asset, 0, len(assets))
	for _, a := range assets {
		if q.Matches(a) {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return q.Less(result[i], result[j])
	})
	return result
}

// EscapeLike escapes LIKE wildcards so user input matches literally with
// ESCAPE '\'.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
