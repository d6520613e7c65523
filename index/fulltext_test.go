package index

import (
	"testing"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

func doc(text string) storage.Entity {
	return storage.Entity{"body": value.String(text)}
}

func TestTokenizeDropsShortAndStopWords(t *testing.T) {
	toks := Tokenize("The quick fox is in a barn", defaultStopWords)
	want := []string{"quick", "fox", "barn"}
	if len(toks) != len(want) {
		t.Fatalf("expected %v, got %v", want, toks)
	}
	for i, w := range want {
		if toks[i] != w {
			t.Fatalf("expected %v, got %v", want, toks)
		}
	}
}

func TestFullTextSearchAnyAndAll(t *testing.T) {
	idx := NewFullText("body")
	idx.Insert("1", doc("the quick brown fox"))
	idx.Insert("2", doc("a lazy dog sleeps"))
	idx.Insert("3", doc("quick dog runs fast"))

	any := idx.SearchAny([]string{"quick", "dog"})
	if len(any) != 3 {
		t.Fatalf("expected 3 ids matching quick OR dog, got %v", any)
	}

	all := idx.SearchAll([]string{"quick", "dog"})
	if len(all) != 1 || all[0] != "3" {
		t.Fatalf("expected only id 3 to match quick AND dog, got %v", all)
	}
}

func TestFullTextSearchPhrase(t *testing.T) {
	idx := NewFullText("body")
	idx.Insert("1", doc("the quick brown fox jumps"))
	idx.Insert("2", doc("brown quick fox jumps"))

	got := idx.SearchPhrase([]string{"quick", "brown"})
	if len(got) != 1 || got[0] != "1" {
		t.Fatalf("expected only id 1 to match phrase 'quick brown' (id 2 has the terms out of order), got %v", got)
	}

	got = idx.SearchPhrase([]string{"brown", "fox"})
	if len(got) != 1 || got[0] != "1" {
		t.Fatalf("expected id 1 to match phrase 'brown fox', got %v", got)
	}
}

func TestFullTextSearchProximity(t *testing.T) {
	idx := NewFullText("body")
	idx.Insert("1", doc("quick brown lazy jumping fox"))
	idx.Insert("2", doc("quick and then much later on a completely different fox"))

	proximal := idx.SearchProximity([]string{"quick", "fox"}, 4)
	found := false
	for _, id := range proximal {
		if id == "1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected id 1 within proximity window, got %v", proximal)
	}

	for _, id := range proximal {
		if id == "2" {
			t.Fatalf("did not expect id 2 within a tight proximity window, got %v", proximal)
		}
	}
}

func TestFullTextSearchPrefix(t *testing.T) {
	idx := NewFullText("body")
	idx.Insert("1", doc("testing prefixes works"))
	idx.Insert("2", doc("nothing matches here"))

	got := idx.SearchPrefix("test")
	if len(got) != 1 || got[0] != "1" {
		t.Fatalf("expected id 1 to match prefix 'test', got %v", got)
	}
}

func TestFullTextSearchRankedOrdersByScore(t *testing.T) {
	idx := NewFullText("body")
	idx.Insert("1", doc("fox fox fox"))
	idx.Insert("2", doc("fox appears once among many other words here padding"))
	// A document without the term keeps idf above zero.
	idx.Insert("3", doc("nothing relevant in this one"))

	ranked := idx.SearchRanked([]string{"fox"})
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked hits, got %v", ranked)
	}
	if ranked[0].ID != "1" {
		t.Fatalf("expected id 1 (higher term frequency) to rank first, got %v", ranked)
	}
}

// TF is raw term count, not normalized by document length: a short doc
// matching a term once must score the same as a long doc matching it
// once, not higher.
func TestFullTextSearchRankedTFIsRawCountNotLengthNormalized(t *testing.T) {
	idx := NewFullText("body")
	idx.Insert("short", doc("fox"))
	idx.Insert("long", doc("fox ran through the field with many other words trailing behind it"))
	// A document without the term keeps idf above zero, so equal scores
	// are not just 0 == 0.
	idx.Insert("other", doc("nothing relevant in this one"))

	ranked := idx.SearchRanked([]string{"fox"})
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked hits, got %v", ranked)
	}
	if ranked[0].Score != ranked[1].Score {
		t.Fatalf("expected equal scores for equal raw term frequency regardless of document length, got %v", ranked)
	}
}

func TestFullTextRemoveUpdatesInvertedIndex(t *testing.T) {
	idx := NewFullText("body")
	idx.Insert("1", doc("quick fox"))
	idx.Remove("1", nil)

	if got := idx.Search(value.String("quick")); len(got) != 0 {
		t.Fatalf("expected no hits after removal, got %v", got)
	}
}

func TestFullTextToMapRestoreFromMapMembership(t *testing.T) {
	idx := NewFullText("body")
	idx.Insert("1", doc("quick brown fox"))
	idx.Insert("2", doc("lazy dog"))

	snapshot := idx.ToMap()

	restored := NewFullText("body")
	restored.RestoreFromMap(snapshot)

	got := restored.Search(value.String("quick"))
	if len(got) != 1 || got[0] != "1" {
		t.Fatalf("expected restored membership for 'quick' -> [1], got %v", got)
	}
}
