package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFExtractor extracts text from PDF content streams via pdfcpu.
type PDFExtractor struct{}

// ExtractText decodes the page content streams into a temp directory and
// scrapes the text-show operators out of them.
func (p *PDFExtractor) ExtractText(ctx context.Context, _ string, path string, _ Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	outDir, err := os.MkdirTemp("", "fileflow-pdf-*")
	if err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, nil); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read extraction dir: %w", err)
	}

	var sb strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		scrapeContentText(&sb, string(data))
		if sb.Len() > maxTextBytes {
			break
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text in %s", path)
	}
	return text, nil
}

// PageCount returns the number of pages in a PDF.
func (p *PDFExtractor) PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

// scrapeContentText pulls string operands of Tj/TJ text-show operators out
// of a decoded content stream.
func scrapeContentText(sb *strings.Builder, stream string) {
	for i := 0; i < len(stream); i++ {
		if stream[i] != '(' {
			continue
		}
		j := i + 1
		var token strings.Builder
		for ; j < len(stream); j++ {
			c := stream[j]
			if c == '\\' && j+1 < len(stream) {
				j++
				token.WriteByte(unescapeContentByte(stream[j]))
				continue
			}
			if c == ')' {
				break
			}
			token.WriteByte(c)
		}
		if j < len(stream) && isTextShowOperator(stream[j+1:]) {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(token.String())
		}
		i = j
	}
}

// isTextShowOperator reports whether the content following a string operand
// leads to a Tj, TJ or quote operator. Inside a TJ array the operand may be
// followed by kerning numbers and further strings before the operator.
func isTextShowOperator(rest string) bool {
	for {
		rest = strings.TrimLeft(rest, " \t\r\n]")
		switch {
		case rest == "":
			return false
		case rest[0] == '(':
			return true
		case rest[0] == '-' || rest[0] == '.' || (rest[0] >= '0' && rest[0] <= '9'):
			rest = strings.TrimLeft(rest, "-.0123456789")
		default:
			return strings.HasPrefix(rest, "Tj") || strings.HasPrefix(rest, "TJ") ||
				strings.HasPrefix(rest, "'") || strings.HasPrefix(rest, "\"")
		}
	}
}

func unescapeContentByte(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		if c >= '0' && c <= '7' {
			v, _ := strconv.Atoi(string(c))
			return byte(v)
		}
		return c
	}
}
