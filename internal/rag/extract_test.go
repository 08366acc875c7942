package rag

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDetectFileType(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"notes.pdf", FileTypePDF},
		{"Thesis.PDF", FileTypePDF},
		{"report.docx", FileTypeDOCX},
		{"doses.csv", FileTypeCSV},
		{"readme.txt", FileTypeText},
		{"scan.png", FileTypeImage},
	}
	for _, c := range cases {
		got, err := DetectFileType(c.filename)
		if err != nil {
			t.Fatalf("DetectFileType(%q) error = %v", c.filename, err)
		}
		if got != c.want {
			t.Fatalf("DetectFileType(%q) = %q, want %q", c.filename, got, c.want)
		}
	}

	if _, err := DetectFileType("archive.tar.gz"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("DetectFileType(.gz) error = %v, want ErrUnsupportedType", err)
	}
}

func TestExtractTextPlain(t *testing.T) {
	got, err := ExtractText(FileTypeText, []byte("  warfarin dosing notes  \n"))
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if got != "warfarin dosing notes" {
		t.Fatalf("ExtractText() = %q", got)
	}
}

func TestExtractTextEmpty(t *testing.T) {
	if _, err := ExtractText(FileTypeText, []byte("   ")); !errors.Is(err, ErrNoText) {
		t.Fatalf("ExtractText(blank) error = %v, want ErrNoText", err)
	}
}

func TestExtractTextUnsupported(t *testing.T) {
	if _, err := ExtractText("xlsx", []byte("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("ExtractText(xlsx) error = %v, want ErrUnsupportedType", err)
	}
}

func TestExtractCSV(t *testing.T) {
	data := []byte("drug,half_life\naspirin,0.25h\nwarfarin,40h\n")
	got, err := ExtractText(FileTypeCSV, data)
	if err != nil {
		t.Fatalf("ExtractText(csv) error = %v", err)
	}
	if !strings.Contains(got, "drug\thalf_life") || !strings.Contains(got, "warfarin\t40h") {
		t.Fatalf("csv text missing rows: %q", got)
	}
}

func TestExtractDOCX(t *testing.T) {
	const documentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Beta blockers reduce</w:t></w:r><w:r><w:t> heart rate.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	got, err := ExtractText(FileTypeDOCX, buf.Bytes())
	if err != nil {
		t.Fatalf("ExtractText(docx) error = %v", err)
	}
	if !strings.Contains(got, "Beta blockers reduce heart rate.") {
		t.Fatalf("docx runs not joined: %q", got)
	}
	if !strings.Contains(got, "Second paragraph.") {
		t.Fatalf("docx paragraph missing: %q", got)
	}
}

func TestExtractDOCXMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("word/styles.xml"); err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if _, err := ExtractText(FileTypeDOCX, buf.Bytes()); err == nil {
		t.Fatal("ExtractText(docx without document.xml) expected error")
	}
}
