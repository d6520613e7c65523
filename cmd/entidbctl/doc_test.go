package main

import "testing"

func TestDocFromJSONRoundTrips(t *testing.T) {
	raw := map[string]interface{}{"name": "widget", "count": float64(3)}
	d := docFromJSON(raw)
	d = docWithID(d, "abc")

	out := d.toJSON()
	if out["id"] != "abc" {
		t.Fatalf("expected id abc, got %v", out["id"])
	}
	if out["name"] != "widget" {
		t.Fatalf("expected name widget, got %v", out["name"])
	}
	if out["count"] != float64(3) {
		t.Fatalf("expected count 3, got %v", out["count"])
	}
}

func TestDocAccessors(t *testing.T) {
	d := doc{ID: "x"}
	if docID(d) != "x" {
		t.Fatalf("expected docID x, got %q", docID(d))
	}
	m, err := docToMap(d)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := docFromMap("x", m); err != nil {
		t.Fatal(err)
	}
}
