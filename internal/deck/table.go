package deck

import (
	"strings"

	"github.com/beevik/etree"
)

// Table is an a:tbl element.
type Table struct {
	el *etree.Element
}

func (t *Table) rows() []*etree.Element {
	return t.el.SelectElements("tr")
}

func (t *Table) NumRows() int {
	return len(t.rows())
}

func (t *Table) NumCols() int {
	grid := t.el.SelectElement("tblGrid")
	if grid == nil {
		return 0
	}
	return len(grid.SelectElements("gridCol"))
}

// Cell returns the cell at row, col, or nil when out of range.
func (t *Table) Cell(row, col int) *Cell {
	rows := t.rows()
	if row < 0 || row >= len(rows) {
		return nil
	}
	cells := rows[row].SelectElements("tc")
	if col < 0 || col >= len(cells) {
		return nil
	}
	return &Cell{el: cells[col]}
}

// Cells returns every cell, row by row.
func (t *Table) Cells() []*Cell {
	var out []*Cell
	for _, tr := range t.rows() {
		for _, tc := range tr.SelectElements("tc") {
			out = append(out, &Cell{el: tc})
		}
	}
	return out
}

// Cell is an a:tc element.
type Cell struct {
	el *etree.Element
}

// Text renders the cell with paragraphs separated by "\n" and line breaks
// as "\v".
func (c *Cell) Text() string {
	body := c.el.SelectElement("txBody")
	if body == nil {
		return ""
	}
	var paras []string
	for _, p := range body.SelectElements("p") {
		var b strings.Builder
		for _, e := range p.ChildElements() {
			switch e.Tag {
			case "r", "fld":
				if t := e.SelectElement("t"); t != nil {
					b.WriteString(t.Text())
				}
			case "br":
				b.WriteString("\v")
			}
		}
		paras = append(paras, b.String())
	}
	return strings.Join(paras, "\n")
}

// SetText replaces the cell content. The first paragraph's properties and
// the first run's formatting (or the end-of-paragraph formatting of an empty
// cell) carry over to the new text.
func (c *Cell) SetText(s string) {
	body := c.el.SelectElement("txBody")
	if body == nil {
		body = etree.NewElement("a:txBody")
		body.CreateElement("a:bodyPr")
		body.CreateElement("a:lstStyle")
		c.el.InsertChildAt(0, body)
	}

	var pPr, rPr *etree.Element
	paras := body.SelectElements("p")
	if len(paras) > 0 {
		first := paras[0]
		if e := first.SelectElement("pPr"); e != nil {
			pPr = e.Copy()
		}
		if r := first.SelectElement("r"); r != nil {
			if e := r.SelectElement("rPr"); e != nil {
				rPr = e.Copy()
			}
		}
		if rPr == nil {
			if e := first.SelectElement("endParaRPr"); e != nil {
				rPr = e.Copy()
			}
		}
	}
	for _, p := range paras {
		body.RemoveChild(p)
	}

	for _, line := range strings.Split(xmlSafeCell(s), "\n") {
		p := body.CreateElement("a:p")
		if pPr != nil {
			p.AddChild(pPr.Copy())
		}
		for i, seg := range strings.Split(line, "\v") {
			if i > 0 {
				br := p.CreateElement("a:br")
				if rPr != nil {
					br.AddChild(retag(rPr, "rPr"))
				}
			}
			if seg == "" {
				continue
			}
			r := p.CreateElement("a:r")
			if rPr != nil {
				r.AddChild(retag(rPr, "rPr"))
			}
			r.CreateElement("a:t").SetText(seg)
		}
		if rPr != nil {
			p.AddChild(retag(rPr, "endParaRPr"))
		}
	}
}

// xmlSafeCell is xmlSafe that keeps the vertical tab used for line breaks.
func xmlSafeCell(s string) string {
	parts := strings.Split(s, "\v")
	for i, p := range parts {
		parts[i] = xmlSafe(p)
	}
	return strings.Join(parts, "\v")
}

func retag(e *etree.Element, tag string) *etree.Element {
	c := e.Copy()
	c.Tag = tag
	return c
}
