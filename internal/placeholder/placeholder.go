// Package placeholder fills "{token}" markers in an existing deck.
package placeholder

import (
	"strings"

	"report-deck/internal/deck"
)

// Pair maps one token to its replacement.
type Pair struct {
	Token string
	Value string
}

// Map is an ordered token table. Replacement runs pair by pair, so when one
// token contains another the earlier pair wins.
type Map []Pair

// Replace applies every pair to s in order.
func (m Map) Replace(s string) string {
	for _, p := range m {
		if p.Token == "" {
			continue
		}
		s = strings.ReplaceAll(s, p.Token, p.Value)
	}
	return s
}

// Result counts what Substitute rewrote.
type Result struct {
	Paragraphs int
	Cells      int
}

// Substitute walks every top-level shape of every slide.
//
// A paragraph is matched on the concatenation of its runs so tokens split
// across runs still resolve; a changed paragraph gets the whole new text in
// its first run, keeping that run's formatting, and its other runs are
// emptied. Table cells are matched on their full text and rewritten only when
// the text changes. Shapes nested in groups are not visited.
func Substitute(d *deck.Deck, m Map) Result {
	var res Result
	for _, slide := range d.Slides() {
		for _, shape := range slide.Shapes() {
			if tf := shape.TextFrame(); tf != nil {
				for _, p := range tf.Paragraphs() {
					if substituteParagraph(p, m) {
						res.Paragraphs++
					}
				}
			}
			if tbl := shape.Table(); tbl != nil {
				for _, cell := range tbl.Cells() {
					text := cell.Text()
					if replaced := m.Replace(text); replaced != text {
						cell.SetText(replaced)
						res.Cells++
					}
				}
			}
		}
	}
	return res
}

func substituteParagraph(p *deck.Paragraph, m Map) bool {
	runs := p.Runs()
	full := p.Text()
	if full == "" {
		return false
	}
	replaced := m.Replace(full)
	if replaced == full {
		return false
	}
	for i, r := range runs {
		if i == 0 {
			r.SetText(replaced)
		} else {
			r.SetText("")
		}
	}
	return true
}
