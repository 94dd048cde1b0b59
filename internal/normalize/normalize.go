// Package normalize converts uploaded contract documents into plain text
// with page markers. It has no side effects.
package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Supported media types.
const (
	MediaPDF  = "application/pdf"
	MediaDOC  = "application/msword"
	MediaDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaText = "text/plain"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrCorruptDocument   = errors.New("corrupt or unreadable document")
)

// PageMarker locates one page within Document.Text as a half-open byte range.
type PageMarker struct {
	Page  int `json:"page"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Document is the normalized text of a contract.
type Document struct {
	Text  string       `json:"text"`
	Pages []PageMarker `json:"pages"`
}

// PageAt returns the page containing offset, or 0 when no page covers it.
func (d *Document) PageAt(offset int) int {
	for _, p := range d.Pages {
		if offset >= p.Start && offset < p.End {
			return p.Page
		}
	}
	if n := len(d.Pages); n > 0 && offset == d.Pages[n-1].End {
		return d.Pages[n-1].Page
	}
	return 0
}

// Normalize extracts text from data according to mediaType.
func Normalize(ctx context.Context, data []byte, mediaType string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch baseType(mediaType) {
	case MediaPDF:
		return normalizePDF(data)
	case MediaDOC:
		return normalizeDOC(data)
	case MediaDOCX:
		return normalizeDOCX(data)
	case MediaText:
		return normalizeText(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
	}
}

var extensions = map[string]string{
	".pdf":  MediaPDF,
	".doc":  MediaDOC,
	".docx": MediaDOCX,
	".txt":  MediaText,
	".text": MediaText,
}

var genericTypes = map[string]bool{
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/unknown":      true,
}

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ResolveMediaType picks the media type from the declared type, then the
// filename extension, then content sniffing. A specific declared type wins
// even when it is unsupported; only empty or generic declarations fall back.
func ResolveMediaType(declared, filename string, data []byte) string {
	declaredType := baseType(declared)
	if declaredType != "" && !genericTypes[declaredType] {
		return declaredType
	}

	if t, ok := extensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}

	if bytes.HasPrefix(data, oleMagic) {
		return MediaDOC
	}

	sniffed := baseType(http.DetectContentType(data))
	if sniffed == "application/zip" && isDOCX(data) {
		return MediaDOCX
	}
	if Supported(sniffed) {
		return sniffed
	}

	if declaredType != "" {
		return declaredType
	}
	return sniffed
}

// Supported reports whether t is a media type Normalize can read.
func Supported(t string) bool {
	switch t {
	case MediaPDF, MediaDOC, MediaDOCX, MediaText:
		return true
	}
	return false
}

func baseType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(t)
}

// pageBuilder accumulates page text. Breaks on an empty page are ignored
// unless keepEmpty is set.
type pageBuilder struct {
	pages     []string
	cur       strings.Builder
	keepEmpty bool
}

func (b *pageBuilder) WriteString(s string) {
	b.cur.WriteString(s)
}

func (b *pageBuilder) newline() {
	s := b.cur.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		b.cur.WriteByte('\n')
	}
}

func (b *pageBuilder) space() {
	s := b.cur.String()
	if s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
		b.cur.WriteByte(' ')
	}
}

func (b *pageBuilder) breakPage() {
	if !b.keepEmpty && strings.TrimSpace(b.cur.String()) == "" {
		return
	}
	b.pages = append(b.pages, b.cur.String())
	b.cur.Reset()
}

func (b *pageBuilder) document() (*Document, error) {
	if strings.TrimSpace(b.cur.String()) != "" || len(b.pages) == 0 {
		b.pages = append(b.pages, b.cur.String())
		b.cur.Reset()
	}
	return fromPages(b.pages)
}

// fromPages joins cleaned page texts with blank lines and records markers.
// A document with no text at all is corrupt.
func fromPages(pages []string) (*Document, error) {
	var sb strings.Builder
	markers := make([]PageMarker, 0, len(pages))

	for i, p := range pages {
		p = cleanText(p)
		if i > 0 {
			sb.WriteString("\n\n")
		}
		start := sb.Len()
		sb.WriteString(p)
		markers = append(markers, PageMarker{Page: i + 1, Start: start, End: sb.Len()})
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text content", ErrCorruptDocument)
	}

	return &Document{Text: text, Pages: markers}, nil
}

// cleanText trims trailing spaces on each line, collapses runs of blank
// lines, and trims the result.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
