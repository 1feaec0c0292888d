package tutor

import (
	"reflect"
	"testing"
)

const structuredResponse = `KEY_TOPICS:
- Binary Search Tree
- Tree Traversal
* Balancing

CONCEPT_CONNECTIONS:
Binary Search Tree -> Tree Traversal: traversal visits nodes in key order
Balancing -> Binary Search Tree

EXPLANATION:
A **binary search tree** keeps keys ordered so lookups take O(log n) on average.

SOURCES:
- Lecture 3: definitions and examples
1. Textbook Chapter 4: balancing
`

func TestParseStructured(t *testing.T) {
	p := ParseStructured(structuredResponse)

	if p.Degraded() {
		t.Error("Degraded() = true; want structured parse")
	}

	wantTopics := []string{"Binary Search Tree", "Tree Traversal", "Balancing"}
	if !reflect.DeepEqual(p.KeyTopics, wantTopics) {
		t.Errorf("KeyTopics = %v; want %v", p.KeyTopics, wantTopics)
	}

	wantConns := []Connection{
		{Source: "Binary Search Tree", Target: "Tree Traversal", Relationship: "traversal visits nodes in key order"},
		{Source: "Balancing", Target: "Binary Search Tree", Relationship: "relates to"},
	}
	if !reflect.DeepEqual(p.Connections, wantConns) {
		t.Errorf("Connections = %+v; want %+v", p.Connections, wantConns)
	}

	if want := "A **binary search tree** keeps keys ordered so lookups take O(log n) on average."; p.Explanation != want {
		t.Errorf("Explanation = %q; want %q", p.Explanation, want)
	}

	wantSources := []string{"Lecture 3: definitions and examples", "Textbook Chapter 4: balancing"}
	if !reflect.DeepEqual(p.Sources, wantSources) {
		t.Errorf("Sources = %v; want %v", p.Sources, wantSources)
	}

	if p.Raw != structuredResponse {
		t.Error("Raw does not preserve the original text")
	}
}

func TestParseStructuredCaseInsensitive(t *testing.T) {
	p := ParseStructured("explanation:\nJust the explanation.")
	if p.Degraded() {
		t.Error("Degraded() = true; want lowercase section accepted")
	}
	if p.Explanation != "Just the explanation." {
		t.Errorf("Explanation = %q", p.Explanation)
	}
}

func TestParseStructuredUnformattedResponse(t *testing.T) {
	raw := "Recursion is when a function calls itself. The base case stops it."
	p := ParseStructured(raw)

	if !p.Degraded() {
		t.Error("Degraded() = false; want degraded for unformatted text")
	}
	if p.Explanation != raw {
		t.Errorf("Explanation = %q; want full raw text", p.Explanation)
	}
	if len(p.KeyTopics) != 0 || len(p.Connections) != 0 || len(p.Sources) != 0 {
		t.Errorf("structured fields not empty: %+v", p)
	}
}

func TestParseStructuredPartialSections(t *testing.T) {
	raw := "KEY_TOPICS:\n- Recursion\n\nSome trailing prose without an explanation header."
	p := ParseStructured(raw)

	if !p.Degraded() {
		t.Error("Degraded() = false; want degraded when EXPLANATION missing")
	}
	if !reflect.DeepEqual(p.KeyTopics, []string{"Recursion"}) {
		t.Errorf("KeyTopics = %v; want [Recursion]", p.KeyTopics)
	}
	if p.Explanation != raw {
		t.Error("Explanation should fall back to the full raw text")
	}
}

func TestParseStructuredEmpty(t *testing.T) {
	p := ParseStructured("")
	if !p.Degraded() {
		t.Error("Degraded() = false; want degraded for empty input")
	}
	if p.Explanation != "" || p.Raw != "" {
		t.Errorf("unexpected content: %+v", p)
	}
}

func TestParseStructuredSkipsMalformedConnections(t *testing.T) {
	raw := `CONCEPT_CONNECTIONS:
-> Target only
Source only ->
A -> B

EXPLANATION:
ok`
	p := ParseStructured(raw)

	want := []Connection{{Source: "A", Target: "B", Relationship: "relates to"}}
	if !reflect.DeepEqual(p.Connections, want) {
		t.Errorf("Connections = %+v; want %+v", p.Connections, want)
	}
}
