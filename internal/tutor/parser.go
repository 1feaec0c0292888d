// Package tutor turns free-form model output into structured tutoring
// responses.
package tutor

import (
	"regexp"
	"strings"
)

// Connection links two concepts in an explanation.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// Parsed is the result of parsing a tutoring response. Raw always holds
// the full original text; the structured fields are empty when the model
// ignored the section format.
type Parsed struct {
	Raw         string       `json:"message"`
	KeyTopics   []string     `json:"key_topics"`
	Connections []Connection `json:"concept_graph"`
	Explanation string       `json:"markdown_content"`
	Sources     []string     `json:"sources"`
	structured  bool
}

// Degraded reports whether structured parsing failed and the whole raw
// text was used as the explanation.
func (p *Parsed) Degraded() bool {
	return !p.structured
}

var (
	topicsSection      = regexp.MustCompile(`(?is)KEY_TOPICS:\s*(.*?)\s*(?:CONCEPT_CONNECTIONS:|EXPLANATION:|SOURCES:|$)`)
	connectionsSection = regexp.MustCompile(`(?is)CONCEPT_CONNECTIONS:\s*(.*?)\s*(?:EXPLANATION:|SOURCES:|$)`)
	explanationSection = regexp.MustCompile(`(?is)EXPLANATION:\s*(.*?)\s*(?:SOURCES:|$)`)
	sourcesSection     = regexp.MustCompile(`(?is)SOURCES:\s*(.*)$`)

	listMarker = regexp.MustCompile(`^[\-\*\d\.]+\s*`)
	numbered   = regexp.MustCompile(`^\d+\.`)
)

// ParseStructured extracts the KEY_TOPICS / CONCEPT_CONNECTIONS /
// EXPLANATION / SOURCES sections from a tutoring response. Models
// routinely ignore the format, so missing sections never produce an
// error: when no EXPLANATION section is found the entire raw text
// becomes the explanation and the result reports itself degraded.
func ParseStructured(raw string) *Parsed {
	p := &Parsed{
		Raw:         raw,
		KeyTopics:   []string{},
		Connections: []Connection{},
		Sources:     []string{},
	}

	if m := topicsSection.FindStringSubmatch(raw); m != nil {
		p.KeyTopics = parseListItems(m[1])
	}

	if m := connectionsSection.FindStringSubmatch(raw); m != nil {
		p.Connections = parseConnections(m[1])
	}

	if m := explanationSection.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		p.Explanation = strings.TrimSpace(m[1])
		p.structured = true
	} else {
		p.Explanation = raw
	}

	if m := sourcesSection.FindStringSubmatch(raw); m != nil {
		p.Sources = parseListItems(m[1])
	}

	return p
}

// parseListItems keeps lines that look like list entries and strips
// their markers.
func parseListItems(text string) []string {
	items := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") && !numbered.MatchString(line) {
			continue
		}
		item := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// parseConnections reads "Concept A -> Concept B: relationship" lines.
func parseConnections(text string) []Connection {
	conns := []Connection{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "->") {
			continue
		}
		parts := strings.SplitN(line, "->", 2)
		source := strings.TrimSpace(parts[0])

		target, relationship := parts[1], "relates to"
		if idx := strings.Index(target, ":"); idx >= 0 {
			relationship = strings.TrimSpace(target[idx+1:])
			target = target[:idx]
		}
		target = strings.TrimSpace(target)

		if source == "" || target == "" {
			continue
		}
		conns = append(conns, Connection{
			Source:       source,
			Target:       target,
			Relationship: relationship,
		})
	}
	return conns
}
