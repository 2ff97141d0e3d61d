package refresh

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
)

var errModelDown = errors.New("model unavailable")

// mockGenerator implements genai.Generator for testing.
type mockGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func threeSections() []model.Section {
	return []model.Section{
		{ID: "section-0", Heading: "Introduction", Content: "<p>intro</p>", OriginalIndex: 0},
		{ID: "section-1", Heading: "Main Topic", Content: "<p>body</p>", OriginalIndex: 1},
		{ID: "section-2", Heading: "Conclusion", Content: "<p>end</p>", OriginalIndex: 2},
	}
}

func newTestAnalyzer(gen *mockGenerator) *StructureAnalyzer {
	return NewStructureAnalyzer(gen, DefaultPolicy, slog.Default())
}

func TestAnalyze_ValidMergeSuggestion(t *testing.T) {
	gen := &mockGenerator{reply: `{
		"needsRestructuring": true,
		"restructuringReason": "intro and main topic overlap",
		"suggestions": [
			{"action": "merge", "affectedSections": [0, 1], "newHeading": "Overview", "rationale": "same topic", "confidenceLevel": "high"}
		]
	}`}

	analysis := newTestAnalyzer(gen).Analyze(context.Background(), threeSections(), "My Post")

	if !analysis.NeedsRestructuring {
		t.Error("NeedsRestructuring = false, want true")
	}
	if analysis.CurrentSectionCount != 3 {
		t.Errorf("CurrentSectionCount = %d, want 3", analysis.CurrentSectionCount)
	}
	if len(analysis.Suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(analysis.Suggestions))
	}

	s := analysis.Suggestions[0]
	if s.Action != model.ActionMerge {
		t.Errorf("Action = %q, want %q", s.Action, model.ActionMerge)
	}
	if len(s.AffectedSections) != 2 || s.AffectedSections[0] != 0 || s.AffectedSections[1] != 1 {
		t.Errorf("AffectedSections = %v, want [0 1]", s.AffectedSections)
	}
	if s.NewHeading != "Overview" {
		t.Errorf("NewHeading = %q, want %q", s.NewHeading, "Overview")
	}
}

func TestAnalyze_PromptEnumeratesHeadings(t *testing.T) {
	gen := &mockGenerator{reply: `{"needsRestructuring": false, "suggestions": []}`}

	newTestAnalyzer(gen).Analyze(context.Background(), threeSections(), "My Post")

	if len(gen.prompts) != 1 {
		t.Fatalf("model called %d times, want 1", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	for _, want := range []string{"My Post", "0. Introduction", "1. Main Topic", "2. Conclusion", "confidence"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAnalyze_ValidationPipeline(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{
			name: "merge naming one section dropped",
			reply: `{"needsRestructuring": true, "suggestions": [
				{"action": "merge", "affectedSections": [0], "rationale": "r", "confidenceLevel": "high"}
			]}`,
			want: 0,
		},
		{
			name: "merge naming three sections dropped under strict policy",
			reply: `{"needsRestructuring": true, "suggestions": [
				{"action": "merge", "affectedSections": [0, 1, 2], "rationale": "r", "confidenceLevel": "high"}
			]}`,
			want: 0,
		},
		{
			name: "out-of-range index invalidates the whole suggestion",
			reply: `{"needsRestructuring": true, "suggestions": [
				{"action": "merge", "affectedSections": [0, 7], "rationale": "r", "confidenceLevel": "high"}
			]}`,
			want: 0,
		},
		{
			name: "negative index invalidates the whole suggestion",
			reply: `{"needsRestructuring": true, "suggestions": [
				{"action": "merge", "affectedSections": [-1, 1], "rationale": "r", "confidenceLevel": "high"}
			]}`,
			want: 0,
		},
		{
			name: "duplicate unordered pair suppressed",
			reply: `{"needsRestructuring": true, "suggestions": [
				{"action": "merge", "affectedSections": [0, 1], "rationale": "r", "confidenceLevel": "high"},
				{"action": "merge", "affectedSections": [1, 0], "rationale": "r2", "confidenceLevel": "high"}
			]}`,
			want: 1,
		},
		{
			name: "low confidence discarded",
			reply: `{"needsRestructuring": true, "suggestions": [
				{"action": "merge", "affectedSections": [0, 1], "rationale": "r", "confidenceLevel": "low"}
			]}`,
			want: 0,
		},
		{
			name: "unlabeled confidence discarded",
			reply: `{"needsRestructuring": true, "suggestions": [
				{"action": "merge", "affectedSections": [0, 1], "rationale": "r"}
			]}`,
			want: 0,
		},
		{
			name: "unknown action dropped",
			reply: `{"needsRestructuring": true, "suggestions": [
				{"action": "delete-everything", "affectedSections": [0, 1], "rationale": "r", "confidenceLevel": "high"}
			]}`,
			want: 0,
		},
		{
			name: "medium confidence kept",
			reply: `{"needsRestructuring": true, "suggestions": [
				{"action": "rewrite", "affectedSections": [2], "rationale": "r", "confidenceLevel": "medium"}
			]}`,
			want: 1,
		},
		{
			name:  "suggestions as non-list coerced to empty",
			reply: `{"needsRestructuring": true, "suggestions": "none"}`,
			want:  0,
		},
		{
			name:  "suggestions missing coerced to empty",
			reply: `{"needsRestructuring": true}`,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{reply: tt.reply}
			analysis := newTestAnalyzer(gen).Analyze(context.Background(), threeSections(), "T")

			if len(analysis.Suggestions) != tt.want {
				t.Errorf("kept %d suggestions, want %d: %+v", len(analysis.Suggestions), tt.want, analysis.Suggestions)
			}
			if analysis.NeedsRestructuring != (tt.want > 0) {
				t.Errorf("NeedsRestructuring = %v, want %v (recomputed from kept suggestions)",
					analysis.NeedsRestructuring, tt.want > 0)
			}
		})
	}
}

func TestAnalyze_RelaxedPolicyAllowsThreeWayMerge(t *testing.T) {
	gen := &mockGenerator{reply: `{"needsRestructuring": true, "suggestions": [
		{"action": "merge", "affectedSections": [0, 1, 2], "rationale": "r", "confidenceLevel": "high"}
	]}`}
	analyzer := NewStructureAnalyzer(gen, Policy{MergeSectionCap: 3, MergeRatioThreshold: 0.6}, slog.Default())

	analysis := analyzer.Analyze(context.Background(), threeSections(), "T")
	if len(analysis.Suggestions) != 1 {
		t.Errorf("kept %d suggestions, want 1 under the relaxed cap", len(analysis.Suggestions))
	}
}

func TestAnalyze_KeepOnlySuggestionsMeanNoRestructuring(t *testing.T) {
	gen := &mockGenerator{reply: `{"needsRestructuring": true, "suggestions": [
		{"action": "keep", "affectedSections": [0], "rationale": "fine as is", "confidenceLevel": "high"}
	]}`}

	analysis := newTestAnalyzer(gen).Analyze(context.Background(), threeSections(), "T")

	if analysis.NeedsRestructuring {
		t.Error("NeedsRestructuring = true, want false when nothing actionable survived")
	}
}

func TestAnalyze_UnparseableReplyFailsClosed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "pure prose", reply: "The structure looks fine to me!"},
		{name: "broken JSON", reply: `{"needsRestructuring": true, "suggestions": [`},
		{name: "empty reply", reply: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{reply: tt.reply}
			analysis := newTestAnalyzer(gen).Analyze(context.Background(), threeSections(), "T")

			if analysis.NeedsRestructuring {
				t.Error("NeedsRestructuring = true, want false (fail closed)")
			}
			if len(analysis.Suggestions) != 0 {
				t.Errorf("got %d suggestions, want 0", len(analysis.Suggestions))
			}
			if analysis.RestructuringReason == "" {
				t.Error("RestructuringReason is empty, want an explanation")
			}
		})
	}
}

func TestAnalyze_TransportErrorDegradesToSafeDefault(t *testing.T) {
	gen := &mockGenerator{err: errModelDown}

	analysis := newTestAnalyzer(gen).Analyze(context.Background(), threeSections(), "T")

	if analysis.NeedsRestructuring {
		t.Error("NeedsRestructuring = true, want false")
	}
	if len(analysis.Suggestions) != 0 {
		t.Errorf("got %d suggestions, want 0", len(analysis.Suggestions))
	}
}

func TestAnalyze_TooFewSectionsSkipsModelCall(t *testing.T) {
	gen := &mockGenerator{reply: "should never be used"}

	analysis := newTestAnalyzer(gen).Analyze(context.Background(), threeSections()[:1], "T")

	if len(gen.prompts) != 0 {
		t.Errorf("model called %d times, want 0", len(gen.prompts))
	}
	if analysis.NeedsRestructuring {
		t.Error("NeedsRestructuring = true, want false")
	}
}
