// Package e2e provides end-to-end tests; this file builds minimal files for supported types.
package e2e

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions is the list of file extensions used in E2E file-based tests.
// PDF is covered by internal/extract; a minimal PDF with extractable text is not generated here.
var SupportedFileExtensions = []string{".md", ".txt", ".rst", ".docx", ".xlsx"}

// WriteMinimalFile returns the bytes of a minimal file of the given extension holding text.
// Plain types get the raw text; binary types get a valid container.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".md", ".txt", ".rst":
		return []byte(text), nil
	case ".docx":
		return minimalDocx(text)
	case ".xlsx":
		return minimalXlsx(text)
	default:
		return nil, fmt.Errorf("no fixture for %s", ext)
	}
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

// minimalDocx writes one paragraph per line of text.
func minimalDocx(text string) ([]byte, error) {
	var body strings.Builder
	for _, line := range strings.Split(text, "\n") {
		var esc bytes.Buffer
		if err := xml.EscapeText(&esc, []byte(line)); err != nil {
			return nil, err
		}
		body.WriteString(`<w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">`)
		body.Write(esc.Bytes())
		body.WriteString(`</w:t></w:r></w:p>`)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	files := []struct{ name, data string }{
		{"[Content_Types].xml", contentTypesXML},
		{"word/document.xml", `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`},
	}
	for _, f := range files {
		fw, err := w.Create(f.name)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write([]byte(f.data)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// minimalXlsx writes one line of text per row in column A.
func minimalXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, line := range strings.Split(text, "\n") {
		if err := f.SetCellValue("Sheet1", fmt.Sprintf("A%d", i+1), line); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
