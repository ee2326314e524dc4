package iteration

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xlab/treeprint"
	"golang.org/x/net/html"

	"GoEvolveAI/app/storage"
)

var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\r?\n(.*?)```")

// Dedupe keeps the latest input per profile. Inputs must be ordered oldest
// first; the result keeps the order in which each profile last spoke.
func Dedupe(inputs []storage.Input) []storage.Input {
	last := make(map[string]int, len(inputs))
	for i, in := range inputs {
		last[in.ProfileID] = i
	}
	out := make([]storage.Input, 0, len(last))
	for i, in := range inputs {
		if last[in.ProfileID] == i {
			out = append(out, in)
		}
	}
	return out
}

// ExtractCode returns the interior of the first fenced block in text, or text
// unchanged when there is none.
func ExtractCode(text string) string {
	m := fencedBlock.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	return m[1]
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// BoundFeatures keeps the first max non-empty lines of a feature list.
func BoundFeatures(features string, max int) string {
	var kept []string
	for _, line := range strings.Split(features, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
		if max > 0 && len(kept) == max {
			break
		}
	}
	return strings.Join(kept, "\n")
}

type Summary struct {
	Title   string `json:"title"`
	Scripts int    `json:"scripts"`
}

// Describe reads the document title and counts script elements.
func Describe(code string) Summary {
	var s Summary
	z := html.NewTokenizer(strings.NewReader(code))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			s.Title = strings.TrimSpace(s.Title)
			return s
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "title":
				inTitle = s.Title == ""
			case "script":
				s.Scripts++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = false
			}
		case html.TextToken:
			if inTitle {
				s.Title += string(z.Text())
			}
		}
	}
}

// RenderHistory draws the artifacts as a tree, newest first, marking the current one.
func RenderHistory(state storage.ProgramState, artifacts []storage.Artifact) string {
	phase := string(state.State)
	if phase == "" {
		phase = "UNINITIALIZED"
	}
	tree := treeprint.NewWithRoot(fmt.Sprintf("program (%s)", phase))
	if len(artifacts) == 0 {
		tree.AddNode("no iterations yet")
		return tree.String()
	}
	for _, a := range artifacts {
		label := fmt.Sprintf("#%d %s", a.ID, a.CreatedAt.UTC().Format(time.RFC3339))
		if state.CurrentIteration != nil && *state.CurrentIteration == a.ID {
			label += " [current]"
		}
		branch := tree.AddBranch(label)
		d := Describe(a.Code)
		if d.Title != "" {
			branch.AddNode("title: " + d.Title)
		}
		branch.AddNode(fmt.Sprintf("scripts: %d", d.Scripts))
	}
	return tree.String()
}
