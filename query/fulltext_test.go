package query

import (
	"testing"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

func bodyEntity(text string) storage.Entity {
	return storage.Entity{"body": value.String(text)}
}

func TestFullTextQueryRequiresAllTerms(t *testing.T) {
	q := FullTextQuery{FieldName: "body", Terms: []string{"quick", "fox"}}
	if !q.Matches(bodyEntity("the quick brown fox jumps")) {
		t.Fatalf("expected match when both terms present")
	}
	if q.Matches(bodyEntity("the quick brown dog jumps")) {
		t.Fatalf("expected no match when one term missing")
	}
}

func TestFullTextAnyQueryRequiresOneTerm(t *testing.T) {
	q := FullTextAnyQuery{FieldName: "body", Terms: []string{"quick", "fox"}}
	if !q.Matches(bodyEntity("the dog runs fox-like")) {
		t.Fatalf("expected match when at least one term present")
	}
	if q.Matches(bodyEntity("the dog runs along")) {
		t.Fatalf("expected no match when neither term present")
	}
}

func TestFullTextPhraseQueryRequiresOrder(t *testing.T) {
	q := FullTextPhraseQuery{FieldName: "body", Terms: []string{"brown", "fox"}}
	if !q.Matches(bodyEntity("the quick brown fox jumps")) {
		t.Fatalf("expected phrase match in order")
	}
	if q.Matches(bodyEntity("the quick fox brown jumps")) {
		t.Fatalf("expected no phrase match out of order")
	}
}

func TestFullTextPrefixQuery(t *testing.T) {
	q := FullTextPrefixQuery{FieldName: "body", Prefix: "jum"}
	if !q.Matches(bodyEntity("the fox jumps")) {
		t.Fatalf("expected prefix match")
	}
	if q.Matches(bodyEntity("the fox runs")) {
		t.Fatalf("expected no prefix match")
	}
}

func TestFullTextProximityQuery(t *testing.T) {
	q := FullTextProximityQuery{FieldName: "body", Terms: []string{"quick", "fox"}, MaxDistance: 2}
	if !q.Matches(bodyEntity("quick brown fox")) {
		t.Fatalf("expected proximity match within distance 2")
	}
	if q.Matches(bodyEntity("quick brown lazy dog then much later fox")) {
		t.Fatalf("expected no proximity match beyond distance 2")
	}
}

func TestFullTextQueryMissingFieldNeverMatches(t *testing.T) {
	q := FullTextQuery{FieldName: "body", Terms: []string{"quick"}}
	if q.Matches(storage.Entity{}) {
		t.Fatalf("expected no match on missing field")
	}
}
