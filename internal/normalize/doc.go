package normalize

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Word 97-2003 binary layout offsets.
const (
	fibIdent        = 0xA5EC
	fibFlagsOffset  = 0x0A
	fibEncrypted    = 0x0100
	fibWhichTable   = 0x0200
	fibBaseSize     = 32
	fcClxPairIndex  = 33
	ccpTextLwIndex  = 3
	clxPrc          = 0x01
	clxPcdt         = 0x02
	pcdSize         = 8
	fcCompressedBit = 0x40000000
	fcMask          = 0x3FFFFFFF
)

// normalizeDOC reads the piece table from the table stream and decodes each
// text piece from the WordDocument stream.
func normalizeDOC(data []byte) (*Document, error) {
	streams, err := readStreams(data)
	if err != nil {
		return nil, fmt.Errorf("%w: open compound file: %w", ErrCorruptDocument, err)
	}

	word, ok := streams["WordDocument"]
	if !ok {
		return nil, fmt.Errorf("%w: missing WordDocument stream", ErrCorruptDocument)
	}

	text, err := wordText(word, streams)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDocument, err)
	}

	pb := &pageBuilder{}
	writeWordText(pb, text)
	return pb.document()
}

func readStreams(data []byte) (map[string][]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	streams := make(map[string][]byte)
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			b, err := io.ReadAll(entry)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", entry.Name, err)
			}
			streams[entry.Name] = b
		}
	}
	return streams, nil
}

func wordText(word []byte, streams map[string][]byte) (string, error) {
	if len(word) < fibBaseSize+2 || binary.LittleEndian.Uint16(word) != fibIdent {
		return "", fmt.Errorf("invalid file information block")
	}

	flags := binary.LittleEndian.Uint16(word[fibFlagsOffset:])
	if flags&fibEncrypted != 0 {
		return "", fmt.Errorf("document is encrypted")
	}

	tableName := "0Table"
	if flags&fibWhichTable != 0 {
		tableName = "1Table"
	}
	table, ok := streams[tableName]
	if !ok {
		return "", fmt.Errorf("missing %s stream", tableName)
	}

	ccpText, fcClx, lcbClx, err := fibFields(word)
	if err != nil {
		return "", err
	}
	if uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		return "", fmt.Errorf("piece table out of range")
	}

	pieces, err := pieceTable(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	remaining := int(ccpText)
	for _, p := range pieces {
		if remaining <= 0 {
			break
		}
		n := min(p.chars, remaining)
		s, err := p.decode(word, n)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
		remaining -= n
	}

	return sb.String(), nil
}

// fibFields walks the variable-length FIB sections to ccpText and the CLX location.
func fibFields(word []byte) (ccpText, fcClx, lcbClx uint32, err error) {
	pos := fibBaseSize
	read16 := func() (int, bool) {
		if pos+2 > len(word) {
			return 0, false
		}
		v := int(binary.LittleEndian.Uint16(word[pos:]))
		pos += 2
		return v, true
	}

	csw, ok := read16()
	if !ok {
		return 0, 0, 0, fmt.Errorf("truncated FIB")
	}
	pos += csw * 2

	cslw, ok := read16()
	if !ok {
		return 0, 0, 0, fmt.Errorf("truncated FIB")
	}
	lwStart := pos
	pos += cslw * 4
	if cslw <= ccpTextLwIndex || lwStart+(ccpTextLwIndex+1)*4 > len(word) {
		return 0, 0, 0, fmt.Errorf("truncated FIB")
	}
	ccpText = binary.LittleEndian.Uint32(word[lwStart+ccpTextLwIndex*4:])

	cbRgFcLcb, ok := read16()
	if !ok || cbRgFcLcb <= fcClxPairIndex {
		return 0, 0, 0, fmt.Errorf("truncated FIB")
	}
	off := pos + fcClxPairIndex*8
	if off+8 > len(word) {
		return 0, 0, 0, fmt.Errorf("truncated FIB")
	}

	return ccpText,
		binary.LittleEndian.Uint32(word[off:]),
		binary.LittleEndian.Uint32(word[off+4:]),
		nil
}

type piece struct {
	chars      int
	fc         uint32
	compressed bool
}

func pieceTable(clx []byte) ([]piece, error) {
	pos := 0
	for pos < len(clx) && clx[pos] == clxPrc {
		if pos+3 > len(clx) {
			return nil, fmt.Errorf("truncated property modifiers")
		}
		pos += 3 + int(binary.LittleEndian.Uint16(clx[pos+1:]))
	}
	if pos+5 > len(clx) || clx[pos] != clxPcdt {
		return nil, fmt.Errorf("missing piece descriptor table")
	}

	lcb := int(binary.LittleEndian.Uint32(clx[pos+1:]))
	plc := clx[pos+5:]
	if lcb > len(plc) || lcb < 4 {
		return nil, fmt.Errorf("piece descriptor table out of range")
	}
	plc = plc[:lcb]

	n := (lcb - 4) / (4 + pcdSize)
	pieces := make([]piece, 0, n)
	pcds := plc[(n+1)*4:]
	for i := range n {
		cpStart := binary.LittleEndian.Uint32(plc[i*4:])
		cpEnd := binary.LittleEndian.Uint32(plc[(i+1)*4:])
		if cpEnd < cpStart {
			return nil, fmt.Errorf("piece %d has negative length", i)
		}
		fc := binary.LittleEndian.Uint32(pcds[i*pcdSize+2:])
		pieces = append(pieces, piece{
			chars:      int(cpEnd - cpStart),
			fc:         fc & fcMask,
			compressed: fc&fcCompressedBit != 0,
		})
	}

	return pieces, nil
}

func (p piece) decode(word []byte, n int) (string, error) {
	if p.compressed {
		start := int(p.fc / 2)
		if start+n > len(word) {
			return "", fmt.Errorf("piece out of range")
		}
		return charmap.Windows1252.NewDecoder().String(string(word[start : start+n]))
	}

	start := int(p.fc)
	if start+2*n > len(word) {
		return "", fmt.Errorf("piece out of range")
	}
	return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).
		NewDecoder().
		String(string(word[start : start+2*n]))
}

// writeWordText maps Word control characters onto plain text. Field
// instructions between 0x13 and 0x14 are dropped; field results are kept.
func writeWordText(pb *pageBuilder, text string) {
	fieldDepth := 0
	inInstruction := false

	for _, r := range text {
		switch r {
		case 0x13:
			fieldDepth++
			inInstruction = true
			continue
		case 0x14:
			inInstruction = false
			continue
		case 0x15:
			if fieldDepth > 0 {
				fieldDepth--
			}
			inInstruction = false
			continue
		}
		if inInstruction {
			continue
		}

		switch r {
		case '\r', 0x0B:
			pb.WriteString("\n")
		case 0x0C:
			pb.breakPage()
		case 0x07:
			pb.WriteString("\t")
		case 0x01, 0x08, 0x05:
		default:
			if r >= 0x20 || r == '\t' {
				pb.WriteString(string(r))
			}
		}
	}
}
