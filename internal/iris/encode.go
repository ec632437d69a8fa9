package iris

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Irises is the XML document root.
type Irises struct {
	XMLName xml.Name `xml:"irises"`
	Flowers []Flower `xml:"flower"`
}

const indent = "  "

// Encode renders flowers as an indented <irises> document. The output is
// fully buffered so a failure never produces a partial document.
func Encode(flowers []Flower) ([]byte, error) {
	var buf bytes.Buffer

	enc := xml.NewEncoder(&buf)
	enc.Indent("", indent)
	if err := enc.Encode(Irises{Flowers: flowers}); err != nil {
		return nil, fmt.Errorf("encode irises: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode irises: %w", err)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}
