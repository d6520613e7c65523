package query

import (
	"testing"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

func TestEncodeDecodeRoundTripSimple(t *testing.T) {
	orig := Equals{FieldName: "status", Value: value.String("open")}
	node, err := Encode(orig)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if node.Type != "equals" {
		t.Fatalf("expected type 'equals', got %q", node.Type)
	}
	decoded, err := Decode(node)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	entity := storage.Entity{"status": value.String("open")}
	if !decoded.Matches(entity) {
		t.Fatalf("expected decoded query to match")
	}
}

func TestEncodeDecodeRoundTripCompound(t *testing.T) {
	a := Equals{FieldName: "status", Value: value.String("open")}
	b := GreaterThan("priority", value.Int(2))
	orig, ok := NewAnd(a, b)
	if !ok {
		t.Fatal("expected NewAnd to succeed")
	}

	node, err := Encode(orig)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(node)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	matching := storage.Entity{"status": value.String("open"), "priority": value.Int(5)}
	nonMatching := storage.Entity{"status": value.String("open"), "priority": value.Int(1)}
	if !decoded.Matches(matching) {
		t.Fatalf("expected decoded 'and' query to match")
	}
	if decoded.Matches(nonMatching) {
		t.Fatalf("expected decoded 'and' query to reject low priority")
	}
}

func TestDecodeUnknownTypeFails(t *testing.T) {
	_, err := Decode(Node{Type: "not_a_real_type"})
	if err == nil {
		t.Fatalf("expected error decoding unknown node type")
	}
}

func TestDecodeEmptyAndFails(t *testing.T) {
	_, err := Decode(Node{Type: "and", Clauses: nil})
	if err == nil {
		t.Fatalf("expected error decoding 'and' with no clauses")
	}
}
