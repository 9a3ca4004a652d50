package dash

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// The compatibility patch below fills in manifest fields some players
// (notably VLC) require but ffmpeg's dash muxer can omit. It works on a
// parsed element tree rather than raw text, so attribute ordering and
// already-patched manifests are handled safely. The serializer is
// deterministic: patching an already-patched manifest yields
// byte-identical output.

const (
	onDemandProfile = "urn:mpeg:dash:profile:isoff-on-demand:2011"
	audioMimeType   = "audio/mp4"
	opusCodec       = "opus"
	mpdTimescale    = 1000
)

type xmlAttr struct {
	name  string
	value string
}

// xmlElement is the minimal element model the patcher operates on:
// name, ordered attributes, optional text, ordered children.
type xmlElement struct {
	name     string
	attrs    []xmlAttr
	text     string
	children []*xmlElement
}

func (el *xmlElement) hasAttr(name string) bool {
	for _, a := range el.attrs {
		if a.name == name {
			return true
		}
	}
	return false
}

func (el *xmlElement) addAttrs(attrs ...xmlAttr) {
	el.attrs = append(el.attrs, attrs...)
}

func (el *xmlElement) walk(fn func(*xmlElement)) {
	fn(el)
	for _, c := range el.children {
		c.walk(fn)
	}
}

// PatchManifest applies the compatibility patch to the manifest at
// path. A missing manifest is a no-op.
func PatchManifest(path string, segSeconds int) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	patched, err := patchManifestBytes(data, segSeconds)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, patched, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func patchManifestBytes(data []byte, segSeconds int) ([]byte, error) {
	root, err := parseXML(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if !root.hasAttr("minBufferTime") {
		root.addAttrs(
			xmlAttr{"minBufferTime", fmt.Sprintf("PT%dS", segSeconds)},
			xmlAttr{"profiles", onDemandProfile},
		)
	}

	root.walk(func(el *xmlElement) {
		switch el.name {
		case "AdaptationSet":
			if !el.hasAttr("mimeType") {
				el.addAttrs(
					xmlAttr{"mimeType", audioMimeType},
					xmlAttr{"contentType", "audio"},
					xmlAttr{"subsegmentAlignment", "true"},
				)
			}
		case "Representation":
			if !el.hasAttr("codecs") {
				el.addAttrs(xmlAttr{"codecs", opusCodec})
			}
		case "SegmentTemplate":
			// Replaced wholesale with the canonical template matching the
			// encoder's fixed segment naming; any inner content is dropped.
			el.attrs = []xmlAttr{
				{"initialization", "init.mp4"},
				{"media", "chunk-$Number$.m4s"},
				{"startNumber", "1"},
				{"timescale", strconv.Itoa(mpdTimescale)},
				{"duration", strconv.Itoa(segSeconds * mpdTimescale)},
			}
			el.children = nil
			el.text = ""
		}
	})

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteByte('\n')
	writeXMLElement(&b, root, 0)
	return []byte(b.String()), nil
}

// parseXML builds the element tree from raw manifest bytes. Namespace
// prefixes are rendered back into plain attribute/element names so the
// serializer can re-emit them as written.
func parseXML(data []byte) (*xmlElement, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))

	defaultNS := ""
	prefixes := make(map[string]string) // namespace URI -> declared prefix

	elName := func(n xml.Name) string {
		if n.Space == "" || n.Space == defaultNS {
			return n.Local
		}
		if p, ok := prefixes[n.Space]; ok {
			return p + ":" + n.Local
		}
		return n.Local
	}

	var root *xmlElement
	var stack []*xmlElement

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			// Namespace declarations first, so sibling attributes resolve.
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns":
					prefixes[a.Value] = a.Name.Local
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					defaultNS = a.Value
				}
			}

			el := &xmlElement{name: elName(t.Name)}
			for _, a := range t.Attr {
				var name string
				switch {
				case a.Name.Space == "xmlns":
					name = "xmlns:" + a.Name.Local
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					name = "xmlns"
				default:
					name = elName(a.Name)
				}
				el.attrs = append(el.attrs, xmlAttr{name, a.Value})
			}

			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			if text := strings.TrimSpace(string(t)); text != "" {
				stack[len(stack)-1].text += text
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("manifest has no root element")
	}
	return root, nil
}

func writeXMLElement(b *strings.Builder, el *xmlElement, depth int) {
	indent := strings.Repeat("\t", depth)

	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(el.name)
	for _, a := range el.attrs {
		b.WriteByte(' ')
		b.WriteString(a.name)
		b.WriteString(`="`)
		b.WriteString(escapeXML(a.value))
		b.WriteByte('"')
	}

	switch {
	case len(el.children) == 0 && el.text == "":
		b.WriteString("/>\n")
	case len(el.children) == 0:
		b.WriteByte('>')
		b.WriteString(escapeXML(el.text))
		b.WriteString("</")
		b.WriteString(el.name)
		b.WriteString(">\n")
	default:
		b.WriteString(">\n")
		if el.text != "" {
			b.WriteString(strings.Repeat("\t", depth+1))
			b.WriteString(escapeXML(el.text))
			b.WriteByte('\n')
		}
		for _, c := range el.children {
			writeXMLElement(b, c, depth+1)
		}
		b.WriteString(indent)
		b.WriteString("</")
		b.WriteString(el.name)
		b.WriteString(">\n")
	}
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
