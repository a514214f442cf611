package recognizer

import (
	"math"
	"reflect"
	"testing"
)

func tok(text string, block, par, line int) Token {
	return Token{Text: text, Confidence: 90, Block: block, Paragraph: par, Line: line}
}

func TestReconstruct(t *testing.T) {
	tests := []struct {
		name   string
		tokens []Token
		want   string
	}{
		{
			name:   "empty",
			tokens: nil,
			want:   "",
		},
		{
			name:   "single line",
			tokens: []Token{tok("hello", 1, 1, 1), tok("world", 1, 1, 1)},
			want:   "hello world",
		},
		{
			name: "line break within paragraph",
			tokens: []Token{
				tok("first", 1, 1, 1), tok("line", 1, 1, 1),
				tok("second", 1, 1, 2), tok("line", 1, 1, 2),
			},
			want: "first line\nsecond line",
		},
		{
			name: "paragraph break",
			tokens: []Token{
				tok("para", 1, 1, 1), tok("one", 1, 1, 1),
				tok("para", 1, 2, 1), tok("two", 1, 2, 1),
			},
			want: "para one\n\npara two",
		},
		{
			name: "block change with same paragraph id is a line break only",
			tokens: []Token{
				tok("left", 1, 1, 1),
				tok("right", 2, 1, 1),
			},
			want: "left\nright",
		},
		{
			name: "blank tokens skipped",
			tokens: []Token{
				tok("", 1, 1, 1), tok("  ", 1, 1, 1), tok("kept", 1, 1, 1),
				tok("\t", 1, 2, 1),
				tok("next", 1, 1, 2),
			},
			want: "kept\nnext",
		},
		{
			name: "chinese words",
			tokens: []Token{
				tok("剧本", 1, 1, 1), tok("评分", 1, 1, 1),
				tok("第二段", 1, 2, 1),
			},
			want: "剧本 评分\n\n第二段",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reconstruct(tt.tokens); got != tt.want {
				t.Errorf("Reconstruct() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		confs  []float64
		want   float64
		wantOK bool
	}{
		{"none", nil, 0, false},
		{"all unknown", []float64{-1, -1}, 0, false},
		{"mean", []float64{80, 90, 100}, 0.9, true},
		{"unknown ignored", []float64{-1, 50}, 0.5, true},
		{"clamped", []float64{150}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := make([]Token, len(tt.confs))
			for i, c := range tt.confs {
				tokens[i] = Token{Text: "w", Confidence: c}
			}
			got, ok := Confidence(tokens)
			if ok != tt.wantOK || math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Confidence() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSplitLanguages(t *testing.T) {
	if got := SplitLanguages("chi_sim+eng"); !reflect.DeepEqual(got, []string{"chi_sim", "eng"}) {
		t.Errorf("SplitLanguages() = %v", got)
	}
	if got := SplitLanguages(" eng + "); !reflect.DeepEqual(got, []string{"eng"}) {
		t.Errorf("SplitLanguages() = %v", got)
	}
}

func TestMissingLanguages(t *testing.T) {
	got := missingLanguages("chi_sim+eng", []string{"eng", "osd"})
	if !reflect.DeepEqual(got, []string{"chi_sim"}) {
		t.Errorf("missingLanguages() = %v", got)
	}
}
