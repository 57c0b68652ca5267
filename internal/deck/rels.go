package deck

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

type relation struct {
	typ  string
	part string
}

// relsPartName maps ppt/slides/slide1.xml to ppt/slides/_rels/slide1.xml.rels.
func relsPartName(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// relTarget expresses to as a path relative to the directory of from.
func relTarget(from, to string) string {
	fromDir := strings.Split(path.Dir(from), "/")
	toParts := strings.Split(to, "/")
	if path.Dir(from) == "." {
		fromDir = nil
	}

	common := 0
	for common < len(fromDir) && common < len(toParts)-1 && fromDir[common] == toParts[common] {
		common++
	}
	var out []string
	for range fromDir[common:] {
		out = append(out, "..")
	}
	out = append(out, toParts[common:]...)
	return strings.Join(out, "/")
}

// resolveTarget turns a relationship target into a part name.
func resolveTarget(from, target string) string {
	if strings.HasPrefix(target, "/") {
		return cleanPart(target)
	}
	return cleanPart(path.Join(path.Dir(from), target))
}

// relsDoc returns the relationships of part, creating an empty set when the
// part has none yet.
func (d *Deck) relsDoc(part string) (*etree.Document, error) {
	name := relsPartName(part)
	if !d.hasPart(name) {
		doc := etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		root := doc.CreateElement("Relationships")
		root.CreateAttr("xmlns", nsRel)
		d.putDoc(name, doc)
		return doc, nil
	}
	return d.doc(name)
}

// relTargets maps relationship ids of part to their resolved targets.
// External relationships are skipped.
func (d *Deck) relTargets(part string) (map[string]relation, error) {
	out := make(map[string]relation)
	name := relsPartName(part)
	if !d.hasPart(name) {
		return out, nil
	}
	doc, err := d.doc(name)
	if err != nil {
		return nil, err
	}
	for _, rel := range doc.Root().SelectElements("Relationship") {
		if rel.SelectAttrValue("TargetMode", "") == "External" {
			continue
		}
		out[rel.SelectAttrValue("Id", "")] = relation{
			typ:  rel.SelectAttrValue("Type", ""),
			part: resolveTarget(part, rel.SelectAttrValue("Target", "")),
		}
	}
	return out, nil
}

// addRel links part to target, reusing an existing relationship of the same
// type and target.
func (d *Deck) addRel(part, relType, target string) (string, error) {
	doc, err := d.relsDoc(part)
	if err != nil {
		return "", err
	}
	root := doc.Root()

	next := 1
	for _, rel := range root.SelectElements("Relationship") {
		id := rel.SelectAttrValue("Id", "")
		if rel.SelectAttrValue("Type", "") == relType && rel.SelectAttrValue("Target", "") == target {
			return id, nil
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && n >= next {
			next = n + 1
		}
	}

	id := "rId" + strconv.Itoa(next)
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	return id, nil
}

func (d *Deck) addOverride(part, contentType string) error {
	doc, err := d.doc(partContentTypes)
	if err != nil {
		return err
	}
	root := doc.Root()
	partName := "/" + part
	for _, o := range root.SelectElements("Override") {
		if o.SelectAttrValue("PartName", "") == partName {
			return nil
		}
	}
	o := root.CreateElement("Override")
	o.CreateAttr("PartName", partName)
	o.CreateAttr("ContentType", contentType)
	return nil
}

func (d *Deck) addDefault(ext, contentType string) error {
	doc, err := d.doc(partContentTypes)
	if err != nil {
		return err
	}
	root := doc.Root()
	for _, e := range root.SelectElements("Default") {
		if strings.EqualFold(e.SelectAttrValue("Extension", ""), ext) {
			return nil
		}
	}
	e := etree.NewElement("Default")
	e.CreateAttr("Extension", ext)
	e.CreateAttr("ContentType", contentType)
	insertBefore(root, e, "Override")
	return nil
}

var imageFormats = map[string]struct{ ext, contentType string }{
	"png":  {"png", "image/png"},
	"jpeg": {"jpeg", "image/jpeg"},
	"gif":  {"gif", "image/gif"},
}

// addImage stores data as a media part, once per distinct image.
func (d *Deck) addImage(data []byte) (string, error) {
	sum := sha1.Sum(data)
	if part, ok := d.media[sum]; ok {
		return part, nil
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	f, ok := imageFormats[format]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}

	n := 1
	for _, name := range d.order {
		if strings.HasPrefix(name, "ppt/media/") {
			n++
		}
	}
	part := fmt.Sprintf("ppt/media/image%d.%s", n, f.ext)
	for d.hasPart(part) {
		n++
		part = fmt.Sprintf("ppt/media/image%d.%s", n, f.ext)
	}

	if err := d.addDefault(f.ext, f.contentType); err != nil {
		return "", err
	}
	d.putRaw(part, data)
	d.media[sum] = part
	return part, nil
}

func (d *Deck) hasPart(name string) bool {
	if _, ok := d.raw[name]; ok {
		return true
	}
	_, ok := d.docs[name]
	return ok
}
