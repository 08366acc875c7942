package rag

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedType is returned for file types the ingest pipeline
	// does not know how to read.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNoText is returned when a file parses but yields no usable text.
	ErrNoText = errors.New("no extractable text")
	// ErrOCRUnavailable is returned when image ingestion is requested but
	// no OCR engine is installed on the host.
	ErrOCRUnavailable = errors.New("ocr engine not available")
)

// FileType labels stored documents and chunks by their source format.
const (
	FileTypePDF   = "pdf"
	FileTypeDOCX  = "docx"
	FileTypeCSV   = "csv"
	FileTypeText  = "txt"
	FileTypeImage = "image"
)

// DetectFileType maps a filename extension to a supported file type.
func DetectFileType(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileTypePDF, nil
	case ".docx", ".doc":
		return FileTypeDOCX, nil
	case ".csv":
		return FileTypeCSV, nil
	case ".txt", ".md":
		return FileTypeText, nil
	case ".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".webp":
		return FileTypeImage, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}
}

// ExtractText pulls plain text out of an uploaded file. The returned text is
// normalized but not chunked.
func ExtractText(fileType string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch fileType {
	case FileTypePDF:
		text, err = extractPDF(data)
	case FileTypeDOCX:
		text, err = extractDOCX(data)
	case FileTypeCSV:
		text, err = extractCSV(data)
	case FileTypeText:
		text = string(data)
	case FileTypeImage:
		text, err = extractImageOCR(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
	if err != nil {
		return "", err
	}
	text = NormalizeText(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// extractPDF reads pages one at a time so a malformed page does not discard
// the rest of the document.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// docx paragraph structure inside word/document.xml. Runs of text live in
// w:t elements grouped under w:p paragraphs.
type docxDocument struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("open docx: word/document.xml missing")
	}
	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}

	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	var b strings.Builder
	for _, p := range doc.Body.Paragraphs {
		for _, r := range p.Runs {
			b.WriteString(r.Text)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// extractCSV renders rows as tab-separated lines so column values stay
// associated with their headers when chunked.
func extractCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		b.WriteString(strings.Join(record, "\t"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// extractImageOCR shells out to tesseract. The image goes through a temp
// file because tesseract needs a seekable input.
func extractImageOCR(data []byte) (string, error) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	tmp, err := os.CreateTemp("", "pharmgpt-ocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("ocr temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("ocr temp file: %w", err)
	}

	cmd := exec.Command("tesseract", tmp.Name(), "stdout")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}
