package normalize_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/JaimeStill/covenant/internal/normalize"
)

// buildPDF writes a minimal PDF with one Helvetica text line per page and a
// correct cross-reference table.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func TestNormalizePDF(t *testing.T) {
	data := buildPDF(t, "Page one text.", "Indemnification clause.")

	doc, err := normalize.Normalize(context.Background(), data, normalize.MediaPDF)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if want := "Page one text.\n\nIndemnification clause."; doc.Text != want {
		t.Errorf("text = %q, want %q", doc.Text, want)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(doc.Pages))
	}
	if got := doc.Text[doc.Pages[1].Start:doc.Pages[1].End]; got != "Indemnification clause." {
		t.Errorf("page 2 = %q", got)
	}
	if doc.PageAt(doc.Pages[1].Start) != 2 {
		t.Errorf("PageAt(%d) = %d, want 2", doc.Pages[1].Start, doc.PageAt(doc.Pages[1].Start))
	}
}

func TestNormalizePDFEncrypted(t *testing.T) {
	plain := buildPDF(t, "Confidential terms.")

	var encrypted bytes.Buffer
	conf := model.NewAESConfiguration("reader-secret", "owner-secret", 256)
	if err := api.Encrypt(bytes.NewReader(plain), &encrypted, conf); err != nil {
		t.Fatalf("encrypt fixture: %v", err)
	}

	_, err := normalize.Normalize(context.Background(), encrypted.Bytes(), normalize.MediaPDF)
	if !errors.Is(err, normalize.ErrCorruptDocument) {
		t.Errorf("err = %v, want ErrCorruptDocument", err)
	}
}
