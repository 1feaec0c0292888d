package llm

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	name    string
	content string
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(_ context.Context, _ *Request) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Content: f.content, FinishReason: "stop"}, nil
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	p := &fakeProvider{name: "claude"}
	r.Register("claude", p)

	got, err := r.Get("claude")
	if err != nil {
		t.Fatalf("Get(claude) error = %v", err)
	}
	if got.Name() != "claude" {
		t.Errorf("Name() = %q; want %q", got.Name(), "claude")
	}

	_, err = r.Get("missing")
	if !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Get(missing) error = %v; want ErrProviderNotFound", err)
	}
}

func TestRegistryDefault(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Default(); !errors.Is(err, ErrNoDefaultProvider) {
		t.Errorf("Default() on empty registry error = %v; want ErrNoDefaultProvider", err)
	}

	r.Register("ollama", &fakeProvider{name: "ollama"})
	r.Register("claude", &fakeProvider{name: "claude"})

	if err := r.SetDefault("claude"); err != nil {
		t.Fatalf("SetDefault(claude) error = %v", err)
	}

	p, err := r.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if p.Name() != "claude" {
		t.Errorf("Default().Name() = %q; want %q", p.Name(), "claude")
	}

	if err := r.SetDefault("nope"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("SetDefault(nope) error = %v; want ErrProviderNotFound", err)
	}
}

func TestRegistryDefaultAuto(t *testing.T) {
	r := NewRegistry()
	r.Register("ollama", &fakeProvider{name: "ollama"})
	if err := r.SetDefault("ollama"); err != nil {
		t.Fatal(err)
	}
	// "auto" should fall through to any available provider
	r.defaultP = "auto"

	p, err := r.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Default().Name() = %q; want %q", p.Name(), "ollama")
	}
}

func TestComplete(t *testing.T) {
	p := &fakeProvider{name: "fake", content: "hello"}

	got, err := Complete(context.Background(), p, "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Complete() = %q; want %q", got, "hello")
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times; want 1", p.calls)
	}
}

func TestCompleteError(t *testing.T) {
	p := &fakeProvider{name: "fake", err: errors.New("boom")}

	if _, err := Complete(context.Background(), p, "", "x"); err == nil {
		t.Error("Complete() error = nil; want error")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `["a", "b"]`, `["a", "b"]`},
		{"fenced", "```\n[\"a\"]\n```", `["a"]`},
		{"fenced json tag", "```json\n{\"k\": 1}\n```", `{"k": 1}`},
		{"leading whitespace", "  ```json\n[1, 2]\n```  ", `[1, 2]`},
		{"fence on same line", "```{\"k\": 1}\n```", `{"k": 1}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}
