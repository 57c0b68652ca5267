package deck

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Shape is a top-level element of a slide's shape tree.
type Shape struct {
	slide *Slide
	el    *etree.Element
}

// Name is the shape's non-visual name.
func (sh *Shape) Name() string {
	if c := sh.cNvPr(); c != nil {
		return plainAttr(c, "name")
	}
	return ""
}

// ID is the shape's non-visual id.
func (sh *Shape) ID() int {
	if c := sh.cNvPr(); c != nil {
		id, _ := strconv.Atoi(plainAttr(c, "id"))
		return id
	}
	return 0
}

// IsPicture reports whether the shape is a picture.
func (sh *Shape) IsPicture() bool {
	return sh.el.Tag == "pic"
}

// TextFrame returns the shape's text body, or nil for shapes without text.
func (sh *Shape) TextFrame() *TextFrame {
	if sh.el.Tag != "sp" {
		return nil
	}
	body := sh.el.SelectElement("txBody")
	if body == nil {
		return nil
	}
	return &TextFrame{el: body}
}

// Table returns the table held by a graphic frame, or nil.
func (sh *Shape) Table() *Table {
	if sh.el.Tag != "graphicFrame" {
		return nil
	}
	graphic := sh.el.SelectElement("graphic")
	if graphic == nil {
		return nil
	}
	data := graphic.SelectElement("graphicData")
	if data == nil || data.SelectAttrValue("uri", "") != tableGraphicURI {
		return nil
	}
	tbl := data.SelectElement("tbl")
	if tbl == nil {
		return nil
	}
	return &Table{el: tbl}
}

// Rect returns the shape's position and size.
func (sh *Shape) Rect() Rect {
	var xfrm *etree.Element
	if spPr := sh.el.SelectElement("spPr"); spPr != nil {
		xfrm = spPr.SelectElement("xfrm")
	} else if grpSpPr := sh.el.SelectElement("grpSpPr"); grpSpPr != nil {
		xfrm = grpSpPr.SelectElement("xfrm")
	} else {
		xfrm = sh.el.SelectElement("xfrm")
	}
	if xfrm == nil {
		return Rect{}
	}
	var r Rect
	if off := xfrm.SelectElement("off"); off != nil {
		r.X, r.Y = attrLength(off, "x"), attrLength(off, "y")
	}
	if ext := xfrm.SelectElement("ext"); ext != nil {
		r.W, r.H = attrLength(ext, "cx"), attrLength(ext, "cy")
	}
	return r
}

// Image returns the embedded bytes of a picture shape.
func (sh *Shape) Image() ([]byte, bool) {
	if !sh.IsPicture() {
		return nil, false
	}
	fill := sh.el.SelectElement("blipFill")
	if fill == nil {
		return nil, false
	}
	blip := fill.SelectElement("blip")
	if blip == nil {
		return nil, false
	}
	rels, err := sh.slide.deck.relTargets(sh.slide.part)
	if err != nil {
		return nil, false
	}
	rel, ok := rels[nsAttr(blip, "embed")]
	if !ok {
		return nil, false
	}
	return sh.slide.deck.Part(rel.part)
}

func (sh *Shape) cNvPr() *etree.Element {
	for _, nv := range sh.el.ChildElements() {
		if strings.HasPrefix(nv.Tag, "nv") {
			return nv.SelectElement("cNvPr")
		}
	}
	return nil
}

// TextFrame is the text body of a shape.
type TextFrame struct {
	el *etree.Element
}

func (tf *TextFrame) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, p := range tf.el.SelectElements("p") {
		out = append(out, &Paragraph{el: p})
	}
	return out
}

// Text joins the paragraphs' run text with newlines.
func (tf *TextFrame) Text() string {
	var lines []string
	for _, p := range tf.Paragraphs() {
		lines = append(lines, p.Text())
	}
	return strings.Join(lines, "\n")
}

// Paragraph is an a:p element.
type Paragraph struct {
	el *etree.Element
}

// Runs returns the paragraph's text runs. Fields and line breaks are not runs.
func (p *Paragraph) Runs() []*Run {
	var out []*Run
	for _, r := range p.el.SelectElements("r") {
		out = append(out, &Run{el: r})
	}
	return out
}

// Text concatenates the text of the paragraph's runs.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs() {
		b.WriteString(r.Text())
	}
	return b.String()
}

// AddRun appends a run formatted like the paragraph's last run.
func (p *Paragraph) AddRun(text string) *Run {
	r := etree.NewElement("a:r")
	if runs := p.Runs(); len(runs) > 0 {
		if rPr := runs[len(runs)-1].el.SelectElement("rPr"); rPr != nil {
			r.AddChild(rPr.Copy())
		}
	}
	r.CreateElement("a:t").SetText(xmlSafe(text))
	insertBefore(p.el, r, "endParaRPr")
	return &Run{el: r}
}

// Run is an a:r element; its formatting lives in a:rPr and is left alone
// when the text changes.
type Run struct {
	el *etree.Element
}

func (r *Run) Text() string {
	if t := r.el.SelectElement("t"); t != nil {
		return t.Text()
	}
	return ""
}

func (r *Run) SetText(s string) {
	t := r.el.SelectElement("t")
	if t == nil {
		t = r.el.CreateElement("a:t")
	}
	t.SetText(xmlSafe(s))
}
