package preview

import (
	"bytes"
	"errors"
	"regexp"
	"unicode/utf8"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/files/sniffer"
)

const maxBytes = 64 << 10

var ErrNotSVG = errors.New("not an svg document")

var (
	scriptTagPattern     = regexp.MustCompile(`(?is)<\s*script[\s>].*?<\s*/\s*script\s*>`)
	foreignObjectPattern = regexp.MustCompile(`(?is)<\s*foreignObject[\s>].*?<\s*/\s*foreignObject\s*>`)
	eventAttrPattern     = regexp.MustCompile(`(?is)\son[a-z]+\s*=\s*("[^"]*"|'[^']*')`)
	jsHrefPattern        = regexp.MustCompile(`(?is)\s(xlink:)?href\s*=\s*("\s*javascript:[^"]*"|'\s*javascript:[^']*')`)
)

// Preview is what a dashboard may show inline for a file. Binary and
// download-only formats carry no text.
type Preview struct {
	Kind      sniffer.Kind `json:"kind"`
	Text      string       `json:"text,omitempty"`
	Sanitized bool         `json:"sanitized,omitempty"`
	Truncated bool         `json:"truncated,omitempty"`
}

func Render(name string, content []byte) Preview {
	p := Preview{Kind: sniffer.DetectHead(content)}
	if p.Kind != sniffer.KindText {
		return p
	}

	if sniffer.Extension(name) == "svg" {
		clean, err := SanitizeSVG(content)
		if err != nil {
			return Preview{Kind: sniffer.KindBinary}
		}
		content = clean
		p.Sanitized = true
	}

	if len(content) > maxBytes {
		content = content[:maxBytes]
		for len(content) > 0 && !utf8.Valid(content) {
			content = content[:len(content)-1]
		}
		p.Truncated = true
	}
	p.Text = string(content)
	return p
}

// SanitizeSVG strips scripts, event handlers, javascript links and
// embedded HTML from an SVG document.
func SanitizeSVG(input []byte) ([]byte, error) {
	if !bytes.Contains(bytes.ToLower(input), []byte("<svg")) {
		return nil, ErrNotSVG
	}

	clean := scriptTagPattern.ReplaceAll(input, nil)
	clean = foreignObjectPattern.ReplaceAll(clean, nil)
	clean = eventAttrPattern.ReplaceAll(clean, nil)
	clean = jsHrefPattern.ReplaceAll(clean, nil)

	return clean, nil
}
