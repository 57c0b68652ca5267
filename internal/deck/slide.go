package deck

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Align is horizontal paragraph alignment.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// TextStyle is the run formatting applied to generated text.
type TextStyle struct {
	Font  string
	Size  float64 // points
	Bold  bool
	Color string // RRGGBB; empty inherits
	Align Align
}

// Slide is one slide part.
type Slide struct {
	deck *Deck
	part string
	doc  *etree.Document
}

// Part is the package name of the slide, e.g. ppt/slides/slide1.xml.
func (s *Slide) Part() string {
	return s.part
}

// Shapes returns the top-level shapes in z-order, back to front.
func (s *Slide) Shapes() []*Shape {
	tree := s.spTree(false)
	if tree == nil {
		return nil
	}
	var shapes []*Shape
	for _, e := range tree.ChildElements() {
		switch e.Tag {
		case "sp", "pic", "graphicFrame", "grpSp", "cxnSp":
			shapes = append(shapes, &Shape{slide: s, el: e})
		}
	}
	return shapes
}

// AddTextBox adds a word-wrapped text box. Newlines in text start new
// paragraphs; every paragraph gets the same style.
func (s *Slide) AddTextBox(r Rect, text string, style TextStyle) *Shape {
	id := s.nextShapeID()
	sp := s.spTree(true).CreateElement("p:sp")

	nv := sp.CreateElement("p:nvSpPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", strconv.Itoa(id))
	cNvPr.CreateAttr("name", fmt.Sprintf("TextBox %d", id-1))
	nv.CreateElement("p:cNvSpPr").CreateAttr("txBox", "1")
	nv.CreateElement("p:nvPr")

	spPr := sp.CreateElement("p:spPr")
	writeXfrm(spPr.CreateElement("a:xfrm"), r)
	rectGeometry(spPr)
	spPr.CreateElement("a:noFill")

	txBody := sp.CreateElement("p:txBody")
	bodyPr := txBody.CreateElement("a:bodyPr")
	bodyPr.CreateAttr("wrap", "square")
	bodyPr.CreateAttr("rtlCol", "0")
	bodyPr.CreateElement("a:spAutoFit")
	txBody.CreateElement("a:lstStyle")

	for _, line := range strings.Split(xmlSafe(text), "\n") {
		p := txBody.CreateElement("a:p")
		writeParagraphProps(p, style)
		if line != "" {
			run := p.CreateElement("a:r")
			writeRunProps(run.CreateElement("a:rPr"), style)
			run.CreateElement("a:t").SetText(line)
		}
		writeRunProps(p.CreateElement("a:endParaRPr"), style)
	}
	return &Shape{slide: s, el: sp}
}

// AddTable adds a rows x cols table with evenly split columns and rows.
// Cells start empty; style seeds the formatting of text set later.
func (s *Slide) AddTable(rows, cols int, r Rect, style TextStyle) (*Table, error) {
	if rows < 1 || cols < 1 {
		return nil, ErrInvalidDimensions
	}

	id := s.nextShapeID()
	gf := s.spTree(true).CreateElement("p:graphicFrame")

	nv := gf.CreateElement("p:nvGraphicFramePr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", strconv.Itoa(id))
	cNvPr.CreateAttr("name", fmt.Sprintf("Table %d", id-1))
	nv.CreateElement("p:cNvGraphicFramePr").CreateElement("a:graphicFrameLocks").CreateAttr("noGrp", "1")
	nv.CreateElement("p:nvPr")

	writeXfrm(gf.CreateElement("p:xfrm"), r)

	data := gf.CreateElement("a:graphic").CreateElement("a:graphicData")
	data.CreateAttr("uri", tableGraphicURI)
	tbl := data.CreateElement("a:tbl")
	tblPr := tbl.CreateElement("a:tblPr")
	tblPr.CreateAttr("firstRow", "1")
	tblPr.CreateAttr("bandRow", "1")
	tblPr.CreateElement("a:tableStyleId").SetText(defaultTableStyleID)

	grid := tbl.CreateElement("a:tblGrid")
	for _, w := range split(r.W, cols) {
		grid.CreateElement("a:gridCol").CreateAttr("w", w.String())
	}
	for _, h := range split(r.H, rows) {
		tr := tbl.CreateElement("a:tr")
		tr.CreateAttr("h", h.String())
		for c := 0; c < cols; c++ {
			tc := tr.CreateElement("a:tc")
			txBody := tc.CreateElement("a:txBody")
			txBody.CreateElement("a:bodyPr")
			txBody.CreateElement("a:lstStyle")
			p := txBody.CreateElement("a:p")
			writeParagraphProps(p, style)
			writeRunProps(p.CreateElement("a:endParaRPr"), style)
			tc.CreateElement("a:tcPr")
		}
	}
	return &Table{el: tbl}, nil
}

// AddPicture embeds a PNG, JPEG or GIF image stretched to r.
func (s *Slide) AddPicture(data []byte, r Rect) (*Shape, error) {
	media, err := s.deck.addImage(data)
	if err != nil {
		return nil, err
	}
	rid, err := s.deck.addRel(s.part, relTypeImage, relTarget(s.part, media))
	if err != nil {
		return nil, err
	}

	id := s.nextShapeID()
	pic := s.spTree(true).CreateElement("p:pic")

	nv := pic.CreateElement("p:nvPicPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", strconv.Itoa(id))
	cNvPr.CreateAttr("name", fmt.Sprintf("Picture %d", id-1))
	cNvPr.CreateAttr("descr", "")
	nv.CreateElement("p:cNvPicPr").CreateElement("a:picLocks").CreateAttr("noChangeAspect", "1")
	nv.CreateElement("p:nvPr")

	blipFill := pic.CreateElement("p:blipFill")
	blipFill.CreateElement("a:blip").CreateAttr("r:embed", rid)
	blipFill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pic.CreateElement("p:spPr")
	writeXfrm(spPr.CreateElement("a:xfrm"), r)
	rectGeometry(spPr)

	return &Shape{slide: s, el: pic}, nil
}

func (s *Slide) spTree(create bool) *etree.Element {
	root := s.doc.Root()
	cSld := root.SelectElement("cSld")
	if cSld == nil {
		if !create {
			return nil
		}
		cSld = etree.NewElement("p:cSld")
		root.InsertChildAt(0, cSld)
	}
	tree := cSld.SelectElement("spTree")
	if tree == nil && create {
		tree = cSld.CreateElement("p:spTree")
	}
	return tree
}

// nextShapeID is one past the largest shape id anywhere on the slide.
func (s *Slide) nextShapeID() int {
	maxID := 0
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if e.Tag == "cNvPr" {
			if v, err := strconv.Atoi(plainAttr(e, "id")); err == nil && v > maxID {
				maxID = v
			}
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(s.doc.Root())
	return maxID + 1
}

func writeXfrm(xfrm *etree.Element, r Rect) {
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", r.X.String())
	off.CreateAttr("y", r.Y.String())
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", r.W.String())
	ext.CreateAttr("cy", r.H.String())
}

func rectGeometry(spPr *etree.Element) {
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")
}

func writeParagraphProps(p *etree.Element, style TextStyle) {
	if style.Align == AlignCenter {
		p.CreateElement("a:pPr").CreateAttr("algn", "ctr")
	}
}

// writeRunProps fills an a:rPr or a:endParaRPr element. Child order follows
// the schema: fill before typefaces.
func writeRunProps(rPr *etree.Element, style TextStyle) {
	rPr.CreateAttr("lang", "ko-KR")
	rPr.CreateAttr("altLang", "en-US")
	if style.Size > 0 {
		rPr.CreateAttr("sz", strconv.Itoa(int(style.Size*100)))
	}
	if style.Bold {
		rPr.CreateAttr("b", "1")
	}
	rPr.CreateAttr("dirty", "0")

	if style.Color != "" {
		rPr.CreateElement("a:solidFill").CreateElement("a:srgbClr").CreateAttr("val", normalizeColor(style.Color))
	}
	if style.Font != "" {
		rPr.CreateElement("a:latin").CreateAttr("typeface", style.Font)
		rPr.CreateElement("a:ea").CreateAttr("typeface", style.Font)
	}
}

// normalizeColor accepts "RRGGBB" or "#RRGGBB"; anything else is black.
func normalizeColor(hex string) string {
	h := strings.TrimPrefix(hex, "#")
	if len(h) > 6 {
		h = h[:6]
	}
	if len(h) != 6 {
		return "000000"
	}
	if _, err := strconv.ParseUint(h, 16, 32); err != nil {
		return "000000"
	}
	return strings.ToUpper(h)
}

// split divides total into n parts, the last absorbing the remainder.
func split(total Length, n int) []Length {
	out := make([]Length, n)
	each := total / Length(n)
	for i := range out {
		out[i] = each
	}
	out[n-1] = total - each*Length(n-1)
	return out
}
