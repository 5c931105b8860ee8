package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// maxOOXMLPart caps how much XML is read from a single archive member.
const maxOOXMLPart = 32 << 20

// openOOXML opens document bytes as the zip container all OOXML formats use.
func openOOXML(filename string, data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: not a valid OOXML container: %w", filename, err)
	}
	return zr, nil
}

// readZipMember reads one named member of the archive.
func readZipMember(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxOOXMLPart))
	}
	return nil, fmt.Errorf("member %s not found", name)
}

// collectElementText walks an XML stream and gathers character data inside
// elements whose local name is textElem. Elements named after entries in
// breakAfter contribute a newline when closed.
func collectElementText(raw []byte, textElem string, breakAfter map[string]bool) string {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var b strings.Builder
	depth := 0 // nesting depth inside textElem elements

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textElem {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == textElem && depth > 0 {
				depth--
			}
			if breakAfter[t.Name.Local] {
				b.WriteByte('\n')
			}
		case xml.CharData:
			if depth > 0 {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// docxExtractor reads the main document part of a .docx file.
type docxExtractor struct{}

func (docxExtractor) Extract(filename string, data []byte) (string, error) {
	zr, err := openOOXML(filename, data)
	if err != nil {
		return "", err
	}
	raw, err := readZipMember(zr, "word/document.xml")
	if err != nil {
		return "", fmt.Errorf("%s: %w", filename, err)
	}
	text := collectElementText(raw, "t", map[string]bool{"p": true})
	if text == "" {
		return "", fmt.Errorf("%s: document contains no text", filename)
	}
	return text, nil
}

// pptxExtractor reads the slide parts of a .pptx file in slide order.
type pptxExtractor struct{}

func (pptxExtractor) Extract(filename string, data []byte) (string, error) {
	zr, err := openOOXML(filename, data)
	if err != nil {
		return "", err
	}

	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("%s: no slides found", filename)
	}
	sort.Strings(slides)

	var parts []string
	for _, name := range slides {
		raw, err := readZipMember(zr, name)
		if err != nil {
			continue
		}
		if text := collectElementText(raw, "t", map[string]bool{"p": true}); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%s: slides contain no text", filename)
	}
	return strings.Join(parts, "\n\n"), nil
}

// xlsxExtractor reads the shared-string table of a .xlsx file, which holds
// every distinct cell string in the workbook.
type xlsxExtractor struct{}

func (xlsxExtractor) Extract(filename string, data []byte) (string, error) {
	zr, err := openOOXML(filename, data)
	if err != nil {
		return "", err
	}
	raw, err := readZipMember(zr, "xl/sharedStrings.xml")
	if err != nil {
		return "", fmt.Errorf("%s: %w", filename, err)
	}
	text := collectElementText(raw, "t", map[string]bool{"si": true})
	if text == "" {
		return "", fmt.Errorf("%s: workbook contains no text", filename)
	}
	return text, nil
}
