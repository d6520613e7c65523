package query

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/entidb/entidb/value"
)

var relativeParser = newRelativeParser()

func newRelativeParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// RelativeBefore parses a natural-language relative date expression
// ("3 days ago", "last monday") relative to now and returns a
// LessThan comparison query against field, letting callers write
// queries like RelativeBefore("created_at", "2 weeks ago") without
// hand-computing a timestamp.
func RelativeBefore(field, expr string, now time.Time) (Query, error) {
	t, err := resolveRelative(expr, now)
	if err != nil {
		return nil, err
	}
	return LessThan(field, value.Time(t)), nil
}

// RelativeAfter is RelativeBefore's GreaterThan counterpart.
func RelativeAfter(field, expr string, now time.Time) (Query, error) {
	t, err := resolveRelative(expr, now)
	if err != nil {
		return nil, err
	}
	return GreaterThan(field, value.Time(t)), nil
}

func resolveRelative(expr string, now time.Time) (time.Time, error) {
	result, err := relativeParser.Parse(expr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("query: parsing relative date %q: %w", expr, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("query: could not resolve relative date %q", expr)
	}
	return result.Time, nil
}
