package services

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText marks a readable document that holds no extractable text, such
// as a scanned PDF.
var ErrNoText = errors.New("no extractable text")

// DocumentExtractor pulls plain text out of scheme documents (pdf, docx, txt)
// and cuts it into overlapping chunks for embedding.
type DocumentExtractor struct {
	chunkRunes   int
	overlapRunes int
}

func NewDocumentExtractor(chunkRunes, overlapRunes int) *DocumentExtractor {
	if chunkRunes <= 0 {
		chunkRunes = 800
	}
	chunkRunes = max(chunkRunes, 16)
	if overlapRunes < 0 || overlapRunes > chunkRunes/2 {
		overlapRunes = chunkRunes / 8
	}
	return &DocumentExtractor{chunkRunes: chunkRunes, overlapRunes: overlapRunes}
}

func (d *DocumentExtractor) Extract(path string) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		text, err = readPlainText(path)
	case ".pdf":
		text, err = readPDF(path)
	case ".docx":
		text, err = readDOCX(path)
	default:
		return "", fmt.Errorf("unsupported document type: %s", ext)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	text = normalizeExtractedText(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText)
	}
	return text, nil
}

// ExtractChunks is Extract followed by Chunk.
func (d *DocumentExtractor) ExtractChunks(path string) ([]string, error) {
	text, err := d.Extract(path)
	if errors.Is(err, ErrNoText) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.Chunk(text), nil
}

// Chunk packs whole paragraphs into chunks of at most chunkRunes. Each new
// chunk starts with the tail of the previous one. Oversized paragraphs are
// cut on rune boundaries.
func (d *DocumentExtractor) Chunk(text string) []string {
	var chunks []string
	var cur []rune
	fresh := 0 // runes in cur not yet part of an emitted chunk

	emit := func() {
		if fresh == 0 {
			return
		}
		if s := strings.TrimSpace(string(cur)); s != "" {
			chunks = append(chunks, s)
		}
		if len(cur) > d.overlapRunes {
			cur = append([]rune(nil), cur[len(cur)-d.overlapRunes:]...)
		}
		fresh = 0
	}

	for _, para := range strings.Split(text, "\n\n") {
		pr := []rune(strings.TrimSpace(para))
		if len(pr) == 0 {
			continue
		}

		if fresh > 0 && len(cur)+2+len(pr) > d.chunkRunes {
			emit()
		}
		if len(cur) > 0 {
			cur = append(cur, '\n', '\n')
		}

		for len(cur)+len(pr) > d.chunkRunes {
			room := d.chunkRunes - len(cur)
			cur = append(cur, pr[:room]...)
			fresh += room
			pr = pr[room:]
			emit()
		}
		cur = append(cur, pr...)
		fresh += len(pr)
	}
	emit()

	return chunks
}

func readPlainText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

func readDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()

		xml, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		return stripDOCXML(xml), nil
	}
	return "", errors.New("word/document.xml not found")
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func stripDOCXML(src []byte) string {
	s := string(src)
	s = strings.ReplaceAll(s, "</w:p>", "\n\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", " ")
	s = xmlTagPattern.ReplaceAllString(s, "")
	return xmlEntities.Replace(s)
}

// normalizeExtractedText trims every line and collapses runs of blank lines
// to one, so paragraphs are separated by exactly "\n\n".
func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var buf bytes.Buffer
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = buf.Len() > 0
			continue
		}
		if blank {
			buf.WriteString("\n")
			blank = false
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	return strings.TrimSpace(buf.String())
}
