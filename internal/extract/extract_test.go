package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Graph neural</w:t></w:r><w:r><w:t xml:space="preserve"> networks</w:t></w:r></w:p>
    <w:p><w:r><w:t>for   protein folding</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtract_PlainText(t *testing.T) {
	text, err := Extract([]byte("  Hello   world \r\n\r\n\r\n  second\tline  "), KindText)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\n\nsecond line", text)
}

func TestExtract_DOCX(t *testing.T) {
	text, err := Extract(buildDOCX(t, sampleDocumentXML), KindDOCX)
	require.NoError(t, err)
	assert.Equal(t, "Graph neural networks\nfor protein folding", text)
}

func TestExtract_DOCXMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Extract(buf.Bytes(), KindDOCX)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtract_DOCXNotAZip(t *testing.T) {
	_, err := Extract([]byte("definitely not a zip"), KindDOCX)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtract_PDFGarbage(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4 truncated"), KindPDF)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtract_Unsupported(t *testing.T) {
	for _, k := range []Kind{"", "doc", "png"} {
		_, err := Extract([]byte("content"), k)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, "kind %q", k)
	}
}

func TestExtract_Empty(t *testing.T) {
	tests := map[string][]byte{
		"nil":         nil,
		"whitespace":  []byte(" \n\t\r\n  "),
		"bom only":    {0xEF, 0xBB, 0xBF},
		"invalid utf": {0xff, 0xfe, 0xfd},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(in, KindText)
			assert.ErrorIs(t, err, ErrEmptyContent)
		})
	}
}

func TestNormalize_NFCAndBOM(t *testing.T) {
	// "e" + combining acute accent composes to a single rune under NFC.
	in := string([]byte{0xEF, 0xBB, 0xBF}) + "cafe\u0301"
	assert.Equal(t, "caf\u00e9", Normalize(in))
}

func TestKindFromFilename(t *testing.T) {
	tests := map[string]Kind{
		"report.PDF":  KindPDF,
		"notes.txt":   KindText,
		"readme.md":   KindText,
		"thesis.docx": KindDOCX,
		"legacy.doc":  Kind("doc"),
		"noext":       Kind(""),
	}
	for name, want := range tests {
		assert.Equal(t, want, KindFromFilename(name), name)
	}
	assert.False(t, KindFromFilename("legacy.doc").Supported())
}

func TestKindFromMIME(t *testing.T) {
	assert.Equal(t, KindText, KindFromMIME("text/plain; charset=utf-8"))
	assert.Equal(t, KindPDF, KindFromMIME("application/pdf"))
	assert.Equal(t, KindDOCX, KindFromMIME("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.Equal(t, Kind(""), KindFromMIME("image/png"))
}
