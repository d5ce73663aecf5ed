package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"askdocs/internal/models"
)

const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatPPTX = "pptx"
	FormatXLSX = "xlsx"
	FormatXLSM = "xlsm"
	FormatODS  = "ods"
	FormatMD   = "md"
	FormatTXT  = "txt"
)

var (
	xmlTag        = regexp.MustCompile(`<[^>]+>`)
	docxParaEnd   = regexp.MustCompile(`</w:p>|<w:br/>|<w:cr/>`)
	slideFileName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	xmlEntities   = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")
)

// Parser extracts plain text from document bytes.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

// Extract turns raw document bytes of the given format into normalized text.
// Every failure is reported as ErrExtraction and no partial text is returned.
func (p *Parser) Extract(ctx context.Context, data []byte, format string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	var (
		raw string
		err error
	)
	switch format {
	case FormatPDF:
		raw, err = parsePDF(data)
	case FormatDOCX:
		raw, err = parseDOCX(data)
	case FormatPPTX:
		raw, err = parsePPTX(data)
	case FormatXLSX:
		raw, err = parseXLSX(data)
	case FormatODS, FormatXLSM:
		raw, err = parseSpreadsheet(data)
	case FormatMD, "markdown":
		raw, err = parseMarkdown(data)
	case FormatTXT, "text":
		raw, err = parseText(data)
	default:
		return "", models.Wrap(models.ErrExtraction, nil, "unsupported file format %q", format)
	}
	if err != nil {
		return "", models.Wrap(models.ErrExtraction, err, "parse %s", format)
	}

	out := Normalize(raw)
	log.Debug().Str("format", format).Int("bytes", len(data)).Int("runes", utf8.RuneCountInString(out)).Msg("Extracted text")
	return out, nil
}

// DetectFormat infers a format from the file name, falling back to the content.
// It returns an empty string when nothing matches.
func DetectFormat(name string, data []byte) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	switch ext {
	case FormatPDF, FormatDOCX, FormatPPTX, FormatXLSX, FormatXLSM, FormatODS, FormatMD, FormatTXT:
		return ext
	case "markdown":
		return FormatMD
	case "text":
		return FormatTXT
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return FormatPDF
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return sniffZip(data)
	case len(data) > 0 && utf8.Valid(data):
		return FormatTXT
	}
	return ""
}

// IsSupported reports whether the file name has an extension Extract handles.
func IsSupported(name string) bool {
	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".") {
	case FormatPDF, FormatDOCX, FormatPPTX, FormatXLSX, FormatXLSM, FormatODS, FormatMD, FormatTXT, "markdown", "text":
		return true
	}
	return false
}

func sniffZip(data []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch {
		case f.Name == "word/document.xml":
			return FormatDOCX
		case strings.HasPrefix(f.Name, "ppt/slides/"):
			return FormatPPTX
		case f.Name == "xl/workbook.xml":
			return FormatXLSX
		case f.Name == "content.xml":
			return FormatODS
		}
	}
	return ""
}

func parsePDF(data []byte) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}

func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = docxParaEnd.ReplaceAllString(content, "\n\n")
	return xmlEntities.Replace(xmlTag.ReplaceAllString(content, "")), nil
}

func parsePPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, file := range zr.File {
		m := slideFileName.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", file.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file.Name, err)
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, text: extractTextFromXML(string(body))})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found")
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		parts = append(parts, s.text)
	}
	return strings.Join(parts, "\n\n"), nil
}

func parseXLSX(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, sheet := range f.Sheets {
		fmt.Fprintf(&sb, "Sheet: %s\n", sheet.Name)
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			sb.WriteString(strings.Join(cells, " "))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func parseSpreadsheet(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		fmt.Fprintf(&sb, "Sheet: %s\n", sheetName)
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " "))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func parseMarkdown(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("markdown is not valid UTF-8")
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(data))

	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ThematicBreak, *extast.Table:
				sb.WriteString("\n\n")
			case *ast.TextBlock, *extast.TableRow, *extast.TableHeader:
				sb.WriteString("\n")
			case *extast.TableCell:
				sb.WriteString(" ")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteString("\n")
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.AutoLink:
			sb.Write(node.Label(data))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(data))
			}
			sb.WriteString("\n\n")
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func parseText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return string(data), nil
}

// extractTextFromXML collects the <a:t> runs of a slide, one paragraph per <a:p>.
func extractTextFromXML(xmlContent string) string {
	var sb strings.Builder
	for _, para := range strings.Split(xmlContent, "</a:p>") {
		parts := strings.Split(para, "<a:t>")
		var line strings.Builder
		for i, part := range parts {
			if i == 0 {
				continue
			}
			if endIdx := strings.Index(part, "</a:t>"); endIdx >= 0 {
				line.WriteString(xmlEntities.Replace(part[:endIdx]))
			}
		}
		if line.Len() > 0 {
			sb.WriteString(line.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
