package normalize

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

const docxBody = "word/document.xml"

func isDOCX(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == docxBody {
			return true
		}
	}
	return false
}

// normalizeDOCX walks word/document.xml. Paragraphs end lines; explicit and
// last-rendered page breaks split pages.
func normalizeDOCX(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open docx: %w", ErrCorruptDocument, err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptDocument, docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrCorruptDocument, docxBody, err)
	}
	defer rc.Close()

	pb := &pageBuilder{}
	if err := walkDocumentXML(rc, pb); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrCorruptDocument, docxBody, err)
	}

	return pb.document()
}

func walkDocumentXML(r io.Reader, pb *pageBuilder) error {
	dec := xml.NewDecoder(r)
	inRun, inText := false, false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				if inRun {
					pb.WriteString("\t")
				}
			case "cr":
				pb.newline()
			case "br":
				if attr(t, "type") == "page" {
					pb.breakPage()
				} else {
					pb.newline()
				}
			case "lastRenderedPageBreak":
				pb.breakPage()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				pb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				pb.WriteString(string(t))
			}
		}
	}
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
