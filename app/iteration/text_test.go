package iteration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"GoEvolveAI/app/storage"
)

func TestDedupe(t *testing.T) {
	inputs := []storage.Input{
		{ID: 1, ProfileID: "A", InputText: "first"},
		{ID: 2, ProfileID: "B", InputText: "only"},
		{ID: 3, ProfileID: "A", InputText: "second"},
	}
	got := Dedupe(inputs)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, "second", got[1].InputText)

	assert.Empty(t, Dedupe(nil))
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"language fence", "intro\n```html\n<p>hi</p>\n```\noutro", "<p>hi</p>\n"},
		{"bare fence", "```\nconsole.log(1)\n```", "console.log(1)\n"},
		{"first block wins", "```js\na\n```\n```js\nb\n```", "a\n"},
		{"no fence", "<html></html>", "<html></html>"},
		{"unterminated fence", "```html\n<p>", "```html\n<p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 70))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))
}

func TestBoundFeatures(t *testing.T) {
	got := BoundFeatures("\n1. one\n\n2. two\n3. three\n", 2)
	assert.Equal(t, "1. one\n2. two", got)
	assert.Equal(t, "a\nb", BoundFeatures("a\nb", 0))
}

func TestDescribe(t *testing.T) {
	code := `<!doctype html><html><head><title> Snake </title><script src="x"></script></head>
<body><script>start()</script></body></html>`
	assert.Equal(t, Summary{Title: "Snake", Scripts: 2}, Describe(code))
	assert.Equal(t, Summary{}, Describe("plain text"))
}

func TestRenderHistory(t *testing.T) {
	current := int64(2)
	state := storage.ProgramState{ID: 1, State: storage.PhaseIteration, CurrentIteration: &current}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	artifacts := []storage.Artifact{
		{ID: 2, Code: "<title>Pong</title>", CreatedAt: at},
		{ID: 1, Code: "<p>seed</p>", CreatedAt: at.Add(-time.Minute)},
	}

	out := RenderHistory(state, artifacts)
	assert.Contains(t, out, "program (ITERATION)")
	assert.Contains(t, out, "#2 2024-05-01T12:00:00Z [current]")
	assert.Contains(t, out, "title: Pong")
	assert.Contains(t, out, "#1 2024-05-01T11:59:00Z")
	assert.NotContains(t, out, "#1 2024-05-01T11:59:00Z [current]")

	empty := RenderHistory(storage.ProgramState{}, nil)
	assert.Contains(t, empty, "program (UNINITIALIZED)")
	assert.Contains(t, empty, "no iterations yet")
}
