package genai

import (
	"errors"
	"testing"
)

type sampleReply struct {
	NeedsRestructuring bool   `json:"needsRestructuring"`
	Reason             string `json:"restructuringReason"`
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantErr    bool
		wantReason string
	}{
		{
			name:       "strict JSON",
			raw:        `{"needsRestructuring": true, "restructuringReason": "overlap"}`,
			wantReason: "overlap",
		},
		{
			name:       "fenced JSON",
			raw:        "```json\n{\"needsRestructuring\": true, \"restructuringReason\": \"fenced\"}\n```",
			wantReason: "fenced",
		},
		{
			name:       "prose around JSON",
			raw:        `Sure! Here is my analysis: {"needsRestructuring": false, "restructuringReason": "fine"} Hope that helps.`,
			wantReason: "fine",
		},
		{
			name:       "braces inside string literals",
			raw:        `I think {"needsRestructuring": false, "restructuringReason": "contains { and } chars"} is right`,
			wantReason: "contains { and } chars",
		},
		{
			name:    "no JSON at all",
			raw:     "I could not find any structural issues.",
			wantErr: true,
		},
		{
			name:    "unbalanced braces",
			raw:     `{"needsRestructuring": true, "restructuringReason": "oops"`,
			wantErr: true,
		},
		{
			name:    "empty reply",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out sampleReply
			err := DecodeObject(tt.raw, &out)

			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Fatalf("error = %v, want ErrUnparseable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", out.Reason, tt.wantReason)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{
			name:     "html fence",
			in:       "```html\n<p>Hi</p>\n```",
			expected: "<p>Hi</p>",
		},
		{
			name:     "bare fence",
			in:       "```\n<p>Hi</p>\n```",
			expected: "<p>Hi</p>",
		},
		{
			name:     "no fence preserved byte for byte",
			in:       "<p>Hi</p>\n<p>Bye</p>",
			expected: "<p>Hi</p>\n<p>Bye</p>",
		},
		{
			name:     "fence with surrounding whitespace",
			in:       "\n\n```html\n<h2>Title</h2>\n<p>Body</p>\n```\n",
			expected: "<h2>Title</h2>\n<p>Body</p>",
		},
		{
			name:     "unterminated fence",
			in:       "```html\n<p>Hi</p>",
			expected: "<p>Hi</p>",
		},
		{
			name:     "inner fences untouched",
			in:       "```html\n<pre>```code```</pre>\n```",
			expected: "<pre>```code```</pre>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.expected {
				t.Errorf("StripCodeFences() = %q, want %q", got, tt.expected)
			}
		})
	}
}
