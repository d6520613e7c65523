package collection

import (
	"github.com/entidb/entidb/index"
	"github.com/entidb/entidb/query"
)

// plan is the result of partitioning a query tree into an indexable
// portion and a residual portion, per spec.md §4.3's planner steps.
type plan struct {
	candidateIDs []string     // ids supplied by the consulted indexes; may be empty
	indexed      bool         // false means "no index consulted, scan everything"
	residual     query.Query
}

// planFind partitions q against the registered indexes. When q is a
// conjunction, each conjunct is tested independently and indexable
// conjuncts are intersected; the remaining conjuncts form the
// residual. When q is not a conjunction, it is tested as a single
// clause.
func planFind(mgr *index.Manager, q query.Query) plan {
	if and, ok := q.(query.And); ok {
		return planAnd(mgr, and)
	}
	if ids, ok := candidatesForClause(mgr, q); ok {
		return plan{candidateIDs: ids, indexed: true, residual: query.All{}}
	}
	return plan{indexed: false, residual: q}
}

func planAnd(mgr *index.Manager, and query.And) plan {
	var (
		sets        [][]string
		residualOps []query.Query
	)
	for _, clause := range and.Clauses {
		if ids, ok := candidatesForClause(mgr, clause); ok {
			sets = append(sets, ids)
			continue
		}
		residualOps = append(residualOps, clause)
	}

	if len(sets) == 0 {
		return plan{indexed: false, residual: and}
	}

	residual := query.Query(query.All{})
	if len(residualOps) > 0 {
		if r, ok := query.NewAnd(residualOps...); ok {
			residual = r
		}
	}
	return plan{candidateIDs: index.IntersectPreserveOrder(sets...), indexed: true, residual: residual}
}

// candidatesForClause returns the candidate id set an index can
// supply for a single predicate clause, per the indexability matrix
// of spec.md §4.3 step 1 (equals/is-in -> hash or ordered;
// greater/less/between -> ordered; full-text node family -> full-text).
func candidatesForClause(mgr *index.Manager, q query.Query) ([]string, bool) {
	fielded, ok := q.(query.Fielded)
	if !ok {
		return nil, false
	}
	idx, ok := mgr.Get(fielded.Field())
	if !ok {
		return nil, false
	}

	switch t := q.(type) {
	case query.Equals:
		if idx.Variant() != index.VariantHash && idx.Variant() != index.VariantOrdered {
			return nil, false
		}
		return idx.Search(t.Value), true
	case query.In:
		if idx.Variant() != index.VariantHash && idx.Variant() != index.VariantOrdered {
			return nil, false
		}
		sets := make([][]string, 0, len(t.Values))
		for _, v := range t.Values {
			sets = append(sets, idx.Search(v))
		}
		return index.UnionPreserveOrder(sets...), true
	case query.FullTextQuery:
		ft, ok := idx.(*index.FullTextIndex)
		if !ok {
			return nil, false
		}
		return ft.SearchAll(t.Terms), true
	case query.FullTextAnyQuery:
		ft, ok := idx.(*index.FullTextIndex)
		if !ok {
			return nil, false
		}
		return ft.SearchAny(t.Terms), true
	case query.FullTextPhraseQuery:
		ft, ok := idx.(*index.FullTextIndex)
		if !ok {
			return nil, false
		}
		return ft.SearchPhrase(t.Terms), true
	case query.FullTextPrefixQuery:
		ft, ok := idx.(*index.FullTextIndex)
		if !ok {
			return nil, false
		}
		return ft.SearchPrefix(t.Prefix), true
	case query.FullTextProximityQuery:
		ft, ok := idx.(*index.FullTextIndex)
		if !ok {
			return nil, false
		}
		return ft.SearchProximity(t.Terms, t.MaxDistance), true
	}

	// comparison/Between implement Ranged but are unexported or share
	// a common shape; check last so the concrete cases above win.
	if ranged, ok := q.(query.Ranged); ok {
		if idx.Variant() != index.VariantOrdered {
			return nil, false
		}
		ordered := idx.(*index.OrderedIndex)
		lo, hi, incLo, incHi := ranged.Bounds()
		return ordered.RangeSearch(lo, hi, incLo, incHi), true
	}

	return nil, false
}
