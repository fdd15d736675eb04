package datastore

import (
	"fmt"
	"net/url"
)

// Filter is a single PostgREST query-string predicate, e.g. the filter
// produced by Eq("id", "42") serializes as "id=eq.42".
type Filter struct {
	Column   string
	Operator string
	Value    string
}

// Filters is an ordered set of Filter, ANDed together by PostgREST.
type Filters []Filter

// Eq builds an equality filter.
func Eq(column, value string) Filter { return Filter{column, "eq", value} }

// Gt builds a greater-than filter.
func Gt(column, value string) Filter { return Filter{column, "gt", value} }

// Lt builds a less-than filter.
func Lt(column, value string) Filter { return Filter{column, "lt", value} }

func (fs Filters) encode() string {
	q := url.Values{}
	for _, f := range fs {
		q.Add(f.Column, fmt.Sprintf("%s.%s", f.Operator, f.Value))
	}
	return q.Encode()
}
