package sniffer

import (
	"bytes"
	"errors"
	"io"
	"path"
	"strings"
	"unicode/utf8"
)

type Kind string

const (
	KindText   Kind = "text"
	KindPDF    Kind = "pdf"
	KindZip    Kind = "zip" // docx, xlsx, pptx and other OOXML containers
	KindOLE    Kind = "ole" // legacy doc/xls
	KindImage  Kind = "image"
	KindBinary Kind = "binary"
)

var ErrEmpty = errors.New("empty content")

// editableExtensions are plain-text formats that survive a round trip
// through a text editor. A name without extension counts as text.
var editableExtensions = map[string]struct{}{
	"txt": {}, "md": {}, "csv": {}, "json": {}, "html": {}, "htm": {}, "xml": {},
	"yaml": {}, "yml": {}, "config": {}, "conf": {}, "cfg": {}, "ini": {},
	"env": {}, "sql": {}, "log": {},
}

func Detect(r io.Reader) (Kind, []byte, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	if len(head) == 0 {
		return KindText, head, ErrEmpty
	}
	return DetectHead(head), head, nil
}

// DetectHead classifies content by its leading bytes. Empty content is text.
func DetectHead(head []byte) Kind {
	switch {
	case len(head) == 0:
		return KindText
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return KindPDF
	case bytes.HasPrefix(head, []byte("PK\x03\x04")), bytes.HasPrefix(head, []byte("PK\x05\x06")):
		return KindZip
	case bytes.HasPrefix(head, []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}):
		return KindOLE
	case isJPEG(head), isPNG(head), isGIF(head):
		return KindImage
	case isText(head):
		return KindText
	}
	return KindBinary
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

// isText accepts valid UTF-8 without NUL bytes. A multi-byte rune cut at
// the end of a sniffed head is tolerated.
func isText(head []byte) bool {
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	if utf8.Valid(head) {
		return true
	}
	for cut := 1; cut < utf8.UTFMax && cut < len(head); cut++ {
		if utf8.Valid(head[:len(head)-cut]) {
			return true
		}
	}
	return false
}

func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// ExtensionEditable reports whether name carries a plain-text extension.
func ExtensionEditable(name string) bool {
	ext := Extension(name)
	if ext == "" {
		return true
	}
	_, ok := editableExtensions[ext]
	return ok
}

// Editable combines the extension policy with a content check so binary
// payloads behind a text extension are refused too.
func Editable(name string, content []byte) bool {
	return ExtensionEditable(name) && DetectHead(content) == KindText
}

func ContentType(name string, head []byte) string {
	switch DetectHead(head) {
	case KindPDF:
		return "application/pdf"
	case KindZip:
		switch Extension(name) {
		case "docx":
			return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		case "xlsx":
			return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
		return "application/zip"
	case KindOLE:
		return "application/x-ole-storage"
	case KindImage:
		switch {
		case isPNG(head):
			return "image/png"
		case isGIF(head):
			return "image/gif"
		}
		return "image/jpeg"
	case KindText:
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
