// Package deck reads, edits and writes PresentationML (.pptx) packages.
//
// A Deck keeps every package part it does not touch as raw bytes and parses
// XML parts lazily, so a template round-trips with only the edited parts
// re-serialized.
package deck

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/spf13/afero"
)

var (
	ErrNoLayout          = errors.New("deck: no slide layout available for new slides")
	ErrNotPresentation   = errors.New("deck: package has no presentation part")
	ErrUnsupportedImage  = errors.New("deck: unsupported image format")
	ErrInvalidDimensions = errors.New("deck: table needs at least one row and one column")
)

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Deck is an in-memory presentation package.
type Deck struct {
	order  []string
	raw    map[string][]byte
	docs   map[string]*etree.Document
	slides []*Slide
	layout string
	media  map[[20]byte]string
}

// New returns an empty deck with a single blank layout and the given slide size.
func New(width, height Length) (*Deck, error) {
	d := newDeck()
	for _, p := range skeletonParts() {
		d.putRaw(p.name, []byte(p.body))
	}
	pres, err := d.doc(partPresentation)
	if err != nil {
		return nil, err
	}
	if sz := pres.Root().SelectElement("sldSz"); sz != nil {
		sz.CreateAttr("cx", width.String())
		sz.CreateAttr("cy", height.String())
	}
	d.layout = defaultLayout
	return d, nil
}

// Read parses a .pptx archive.
func Read(r io.ReaderAt, size int64) (*Deck, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("deck: open archive: %w", err)
	}

	d := newDeck()
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("deck: open part %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("deck: read part %s: %w", f.Name, err)
		}
		d.putRaw(f.Name, data)
	}

	if _, ok := d.raw[partPresentation]; !ok {
		return nil, ErrNotPresentation
	}
	if err := d.loadSlides(); err != nil {
		return nil, err
	}
	return d, nil
}

// Open reads a .pptx file from fs.
func Open(fs afero.Fs, name string) (*Deck, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(data), int64(len(data)))
}

func newDeck() *Deck {
	return &Deck{
		raw:   make(map[string][]byte),
		docs:  make(map[string]*etree.Document),
		media: make(map[[20]byte]string),
	}
}

// Slides returns the slides in presentation order.
func (d *Deck) Slides() []*Slide {
	return d.slides
}

// Size returns the slide width and height.
func (d *Deck) Size() (Length, Length) {
	pres, err := d.doc(partPresentation)
	if err != nil {
		return 0, 0
	}
	sz := pres.Root().SelectElement("sldSz")
	if sz == nil {
		return 0, 0
	}
	return attrLength(sz, "cx"), attrLength(sz, "cy")
}

// PartNames lists every part in archive order.
func (d *Deck) PartNames() []string {
	return append([]string(nil), d.order...)
}

// Part returns the current bytes of a part.
func (d *Deck) Part(name string) ([]byte, bool) {
	if doc, ok := d.docs[name]; ok {
		var buf bytes.Buffer
		if _, err := doc.WriteTo(&buf); err != nil {
			return nil, false
		}
		return buf.Bytes(), true
	}
	data, ok := d.raw[name]
	return data, ok
}

// SetProperties writes the document title and author into the core
// properties part, adding the part to packages that lack one.
func (d *Deck) SetProperties(title, author string) error {
	if !d.hasPart(partCore) {
		if err := d.addCoreProperties(); err != nil {
			return err
		}
	}
	core, err := d.doc(partCore)
	if err != nil {
		return err
	}
	root := core.Root()
	if root == nil {
		return fmt.Errorf("deck: empty core properties")
	}
	setChildText(root, "dc:title", title)
	setChildText(root, "dc:creator", author)
	return nil
}

func (d *Deck) addCoreProperties() error {
	d.putRaw(partCore, []byte(coreXML))
	if _, err := d.addRel("", relTypeCoreProps, partCore); err != nil {
		return err
	}
	return d.addOverride(partCore, ctCore)
}

// AddSlide appends a blank slide using the deck's first layout.
func (d *Deck) AddSlide() (*Slide, error) {
	if d.layout == "" {
		return nil, ErrNoLayout
	}

	n := 1
	for _, name := range d.order {
		if m := slidePartPattern.FindStringSubmatch(name); m != nil {
			if v, _ := strconv.Atoi(m[1]); v >= n {
				n = v + 1
			}
		}
	}
	part := fmt.Sprintf("ppt/slides/slide%d.xml", n)

	doc := etree.NewDocument()
	if err := doc.ReadFromString(slideXML); err != nil {
		return nil, fmt.Errorf("deck: build slide: %w", err)
	}
	d.putDoc(part, doc)

	if _, err := d.addRel(part, relTypeSlideLayout, relTarget(part, d.layout)); err != nil {
		return nil, err
	}
	rid, err := d.addRel(partPresentation, relTypeSlide, relTarget(partPresentation, part))
	if err != nil {
		return nil, err
	}
	if err := d.appendSlideID(rid); err != nil {
		return nil, err
	}
	if err := d.addOverride(part, ctSlide); err != nil {
		return nil, err
	}

	s := &Slide{deck: d, part: part, doc: doc}
	d.slides = append(d.slides, s)
	return s, nil
}

// Write serializes the package as a zip archive.
func (d *Deck) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range d.order {
		data, ok := d.Part(name)
		if !ok {
			return fmt.Errorf("deck: serialize part %s", name)
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("deck: write part %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("deck: write part %s: %w", name, err)
		}
	}
	return zw.Close()
}

func (d *Deck) loadSlides() error {
	pres, err := d.doc(partPresentation)
	if err != nil {
		return err
	}
	targets, err := d.relTargets(partPresentation)
	if err != nil {
		return err
	}

	var ids []*etree.Element
	if list := pres.Root().SelectElement("sldIdLst"); list != nil {
		ids = list.SelectElements("sldId")
	}
	for _, sldID := range ids {
		rel, ok := targets[nsAttr(sldID, "id")]
		if !ok {
			continue
		}
		doc, err := d.doc(rel.part)
		if err != nil {
			return err
		}
		s := &Slide{deck: d, part: rel.part, doc: doc}
		d.slides = append(d.slides, s)

		if d.layout == "" {
			slideRels, err := d.relTargets(rel.part)
			if err != nil {
				return err
			}
			for _, r := range slideRels {
				if r.typ == relTypeSlideLayout {
					d.layout = r.part
					break
				}
			}
		}
	}
	if d.layout == "" {
		if _, ok := d.raw[defaultLayout]; ok {
			d.layout = defaultLayout
		}
	}
	return nil
}

func (d *Deck) appendSlideID(rid string) error {
	pres, err := d.doc(partPresentation)
	if err != nil {
		return err
	}
	root := pres.Root()
	list := root.SelectElement("sldIdLst")
	if list == nil {
		list = etree.NewElement("p:sldIdLst")
		insertBefore(root, list, "sldSz", "notesSz")
	}

	next := 256
	for _, e := range list.SelectElements("sldId") {
		if v, err := strconv.Atoi(plainAttr(e, "id")); err == nil && v >= next {
			next = v + 1
		}
	}
	e := list.CreateElement("p:sldId")
	e.CreateAttr("id", strconv.Itoa(next))
	e.CreateAttr("r:id", rid)
	return nil
}

func (d *Deck) putRaw(name string, data []byte) {
	if !d.hasPart(name) {
		d.order = append(d.order, name)
	}
	delete(d.docs, name)
	d.raw[name] = data
}

func (d *Deck) putDoc(name string, doc *etree.Document) {
	if !d.hasPart(name) {
		d.order = append(d.order, name)
	}
	delete(d.raw, name)
	d.docs[name] = doc
}

// doc returns the parsed XML of a part, parsing it on first use.
func (d *Deck) doc(name string) (*etree.Document, error) {
	if doc, ok := d.docs[name]; ok {
		return doc, nil
	}
	data, ok := d.raw[name]
	if !ok {
		return nil, fmt.Errorf("deck: missing part %s", name)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("deck: parse part %s: %w", name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("deck: part %s has no root element", name)
	}
	d.putDoc(name, doc)
	return doc, nil
}

// setChildText sets the text of the first child named tag, creating it.
func setChildText(parent *etree.Element, tag, text string) {
	child := parent.SelectElement(tag)
	if child == nil {
		child = parent.CreateElement(tag)
	}
	child.SetText(xmlSafe(text))
}

// insertBefore places child ahead of the first sibling with one of the given
// local names, or at the end when none exists.
func insertBefore(parent, child *etree.Element, names ...string) {
	for i, tok := range parent.Child {
		e, ok := tok.(*etree.Element)
		if !ok {
			continue
		}
		for _, n := range names {
			if e.Tag == n {
				parent.InsertChildAt(i, child)
				return
			}
		}
	}
	parent.AddChild(child)
}

// plainAttr returns an attribute without a namespace prefix.
func plainAttr(e *etree.Element, key string) string {
	for _, a := range e.Attr {
		if a.Key == key && a.Space == "" {
			return a.Value
		}
	}
	return ""
}

// nsAttr returns a namespaced attribute by local name regardless of prefix.
func nsAttr(e *etree.Element, key string) string {
	for _, a := range e.Attr {
		if a.Key == key && a.Space != "" && a.Space != "xmlns" {
			return a.Value
		}
	}
	return ""
}

func attrLength(e *etree.Element, key string) Length {
	v, err := strconv.ParseInt(e.SelectAttrValue(key, "0"), 10, 64)
	if err != nil {
		return 0
	}
	return Length(v)
}

// xmlSafe drops runes that XML 1.0 cannot carry.
func xmlSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 0x9 || r == 0xA || r == 0xD:
			return r
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		}
		return -1
	}, s)
}

func cleanPart(p string) string {
	return strings.TrimPrefix(path.Clean(p), "/")
}
