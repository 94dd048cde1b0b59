package normalize

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
)

// kerningGap is the TJ adjustment, in thousandths of a text unit, treated
// as a word break.
const kerningGap = -180

func normalizePDF(data []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: pdf parser: %v", ErrCorruptDocument, r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: read pdf: %w", ErrCorruptDocument, err)
	}
	if err := api.ValidateContext(pctx); err != nil {
		return nil, fmt.Errorf("%w: validate pdf: %w", ErrCorruptDocument, err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: page count: %w", ErrCorruptDocument, err)
	}

	pb := &pageBuilder{keepEmpty: true}
	for i := 1; i <= pctx.PageCount; i++ {
		r, err := pdfcpu.ExtractPageContent(pctx, i)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrCorruptDocument, i, err)
		}
		if r != nil {
			content, err := io.ReadAll(r)
			if err != nil {
				return nil, fmt.Errorf("%w: page %d: %w", ErrCorruptDocument, i, err)
			}
			writeContentText(pb, content)
		}
		if i < pctx.PageCount {
			pb.breakPage()
		}
	}

	return pb.document()
}

// writeContentText interprets the text-showing operators of a page content
// stream (Tj, TJ, ', ") and approximates line breaks from positioning operators.
func writeContentText(pb *pageBuilder, content []byte) {
	lx := &contentLexer{data: content}
	var operands []contentToken

	for {
		tok, ok := lx.next()
		if !ok {
			return
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if s, ok := lastString(operands); ok {
				pb.WriteString(s)
			}
		case "'", `"`:
			pb.newline()
			if s, ok := lastString(operands); ok {
				pb.WriteString(s)
			}
		case "TJ":
			if n := len(operands); n > 0 && operands[n-1].kind == tokArray {
				for _, item := range operands[n-1].items {
					switch item.kind {
					case tokString:
						pb.WriteString(decodePDFString(item.raw))
					case tokNumber:
						if item.num < kerningGap {
							pb.space()
						}
					}
				}
			}
		case "T*", "Tm", "ET":
			pb.newline()
		case "Td", "TD":
			if n := len(operands); n >= 2 && operands[n-1].kind == tokNumber && operands[n-1].num != 0 {
				pb.newline()
			} else {
				pb.space()
			}
		}
		operands = operands[:0]
	}
}

func lastString(operands []contentToken) (string, bool) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokString {
			return decodePDFString(operands[i].raw), true
		}
	}
	return "", false
}

// decodePDFString decodes UTF-16BE strings marked with a byte order mark and
// treats everything else as a single-byte encoding.
func decodePDFString(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		u := make([]uint16, 0, (len(raw)-2)/2)
		for i := 2; i+1 < len(raw); i += 2 {
			u = append(u, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return printable(string(utf16.Decode(u)))
	}

	s, err := charmap.Windows1252.NewDecoder().String(string(raw))
	if err != nil {
		return ""
	}
	return printable(s)
}

func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return -1
		}
		return r
	}, s)
}

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokString
	tokNumber
	tokArray
	tokOther
)

type contentToken struct {
	kind  tokenKind
	text  string
	raw   []byte
	num   float64
	items []contentToken
}

type contentLexer struct {
	data []byte
	pos  int
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *contentLexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *contentLexer) next() (contentToken, bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return contentToken{}, false
	}

	c := l.data[l.pos]
	switch {
	case c == '(':
		return contentToken{kind: tokString, raw: l.literal()}, true
	case c == '<' && l.peek(1) == '<':
		l.pos += 2
		return contentToken{kind: tokOther, text: "<<"}, true
	case c == '>' && l.peek(1) == '>':
		l.pos += 2
		return contentToken{kind: tokOther, text: ">>"}, true
	case c == '<':
		return contentToken{kind: tokString, raw: l.hex()}, true
	case c == '[':
		l.pos++
		return l.array(), true
	case c == '/':
		l.pos++
		return contentToken{kind: tokOther, text: "/" + l.word()}, true
	case isPDFDelim(c):
		l.pos++
		return contentToken{kind: tokOther, text: string(c)}, true
	}

	w := l.word()
	if n, err := strconv.ParseFloat(w, 64); err == nil {
		return contentToken{kind: tokNumber, num: n, text: w}, true
	}
	if w == "ID" {
		l.skipInlineImage()
	}
	return contentToken{kind: tokOperator, text: w}, true
}

func (l *contentLexer) peek(n int) byte {
	if l.pos+n < len(l.data) {
		return l.data[l.pos+n]
	}
	return 0
}

func (l *contentLexer) word() string {
	start := l.pos
	for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelim(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *contentLexer) array() contentToken {
	arr := contentToken{kind: tokArray}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return arr
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr
		}
		tok, ok := l.next()
		if !ok {
			return arr
		}
		arr.items = append(arr.items, tok)
	}
}

func (l *contentLexer) literal() []byte {
	l.pos++
	var out []byte
	depth := 1

	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if l.pos >= len(l.data) {
				return out
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

func (l *contentLexer) hex() []byte {
	l.pos++
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if c := l.data[l.pos]; !isPDFSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return out
		}
		out = append(out, byte(v))
	}
	return out
}

func (l *contentLexer) skipInlineImage() {
	if l.pos < len(l.data) {
		l.pos++
	}
	for l.pos+2 <= len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos == 0 || isPDFSpace(l.data[l.pos-1])) &&
			(l.pos+2 == len(l.data) || isPDFSpace(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}
