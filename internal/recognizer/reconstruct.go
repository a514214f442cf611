package recognizer

import "strings"

// Reconstruct rebuilds readable text from tokens in engine order. A change of the
// (block, paragraph, line) triple starts a new line; a change of paragraph also
// inserts a blank line.
func Reconstruct(tokens []Token) string {
	var (
		lines   []string
		lineBuf []string
		started bool
		prev    Token
	)

	for _, tok := range tokens {
		word := tok.Text
		if strings.TrimSpace(word) == "" {
			continue
		}

		if !started || tok.Block != prev.Block || tok.Paragraph != prev.Paragraph || tok.Line != prev.Line {
			if len(lineBuf) > 0 {
				lines = append(lines, strings.Join(lineBuf, " "))
				lineBuf = lineBuf[:0]
			}
			if started && tok.Paragraph != prev.Paragraph {
				lines = append(lines, "")
			}
			prev = tok
			started = true
		}

		lineBuf = append(lineBuf, word)
	}

	if len(lineBuf) > 0 {
		lines = append(lines, strings.Join(lineBuf, " "))
	}
	return strings.Join(lines, "\n")
}

// Confidence returns the mean token confidence normalized to [0, 1]. Tokens with
// a negative (unknown) confidence are ignored; ok is false when none remain.
func Confidence(tokens []Token) (float64, bool) {
	var sum float64
	var n int
	for _, tok := range tokens {
		if tok.Confidence < 0 {
			continue
		}
		sum += tok.Confidence
		n++
	}
	if n == 0 {
		return 0, false
	}

	avg := sum / float64(n) / 100.0
	if avg < 0 {
		avg = 0
	}
	if avg > 1 {
		avg = 1
	}
	return avg, true
}
