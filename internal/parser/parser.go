package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"document-qa/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// FileHandler extracts plain text from an uploaded file held in memory.
type FileHandler interface {
	ReadFile(file models.UploadedFile) (string, error)
}

// Declared MIME types for the supported formats.
const (
	TypePDF      = "application/pdf"
	TypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypePPTX     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	TypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	TypeODS      = "application/vnd.oasis.opendocument.spreadsheet"
	TypeText     = "text/plain"
	TypeMarkdown = "text/markdown"
)

// Factory resolves a FileHandler from a file's declared type.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// FileHandler returns the handler for the given declared type. Both MIME
// types and bare extensions are accepted.
func (f *Factory) FileHandler(fileType string) (FileHandler, error) {
	t := strings.ToLower(strings.TrimSpace(fileType))
	// strip any media type parameters, e.g. "text/plain; charset=utf-8"
	if i := strings.Index(t, ";"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case TypePDF, ".pdf", "pdf":
		return pdfHandler{}, nil
	case TypeDOCX, ".docx", "docx":
		return docxHandler{}, nil
	case TypePPTX, ".pptx", "pptx":
		return pptxHandler{}, nil
	case TypeXLSX, ".xlsx", "xlsx":
		return xlsxHandler{}, nil
	case TypeODS, ".ods", "ods":
		return odsHandler{}, nil
	case TypeMarkdown, ".md", "md", ".markdown", "markdown":
		return markdownHandler{}, nil
	case TypeText, ".txt", "txt":
		return textHandler{}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

// DetectType maps a filename extension to its declared MIME type.
func DetectType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return TypePDF
	case ".docx":
		return TypeDOCX
	case ".pptx":
		return TypePPTX
	case ".xlsx":
		return TypeXLSX
	case ".ods":
		return TypeODS
	case ".md", ".markdown":
		return TypeMarkdown
	default:
		return TypeText
	}
}

type pdfHandler struct{}

func (pdfHandler) ReadFile(file models.UploadedFile) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return "", err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return strings.TrimSpace(text.String()), nil
}

type docxHandler struct{}

func (docxHandler) ReadFile(file models.UploadedFile) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var text strings.Builder
	for _, para := range strings.Split(content, "</w:p>") {
		line := extractTextFromXML(para, "w:t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		text.WriteString(strings.TrimSpace(line))
		text.WriteString("\n")
	}
	return strings.TrimSpace(text.String()), nil
}

type pptxHandler struct{}

func (pptxHandler) ReadFile(file models.UploadedFile) (string, error) {
	f, err := zip.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, zf := range f.File {
		if !strings.HasPrefix(zf.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := extractTextFromXML(string(data), "a:t")
		if strings.TrimSpace(slideText) != "" {
			text.WriteString(strings.TrimSpace(slideText))
			text.WriteString("\n")
		}
	}
	return strings.TrimSpace(text.String()), nil
}

type xlsxHandler struct{}

func (xlsxHandler) ReadFile(file models.UploadedFile) (string, error) {
	f, err := xlsx.OpenBinary(file.Data)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
	}
	return strings.TrimSpace(text.String()), nil
}

type odsHandler struct{}

func (odsHandler) ReadFile(file models.UploadedFile) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
	}
	return strings.TrimSpace(text.String()), nil
}

type markdownHandler struct{}

// ReadFile parses the markdown source and walks the AST collecting text
// nodes, so headings, emphasis and links come out as plain prose.
func (markdownHandler) ReadFile(file models.UploadedFile) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(file.Data))

	var buf strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteString("\n")
		}
		if t, ok := n.(*ast.Text); ok {
			buf.Write(t.Segment.Value(file.Data))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

type textHandler struct{}

func (textHandler) ReadFile(file models.UploadedFile) (string, error) {
	return strings.TrimSpace(string(file.Data)), nil
}

// extractTextFromXML pulls the character data of every <tag ...>...</tag>
// element out of raw OOXML markup.
func extractTextFromXML(xmlContent, tag string) string {
	var text strings.Builder
	open := "<" + tag
	closeTag := "</" + tag + ">"
	parts := strings.Split(xmlContent, open)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// guard against longer tag names sharing the prefix, e.g. w:tbl
		if len(part) == 0 || (part[0] != '>' && part[0] != ' ' && part[0] != '/') {
			continue
		}
		// skip the rest of the opening tag, attributes included
		gt := strings.Index(part, ">")
		if gt < 0 {
			continue
		}
		if gt > 0 && part[gt-1] == '/' {
			continue
		}
		part = part[gt+1:]
		endIdx := strings.Index(part, closeTag)
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
