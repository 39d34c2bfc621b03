package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/authzed/connector-archive/pkg/metadata"
)

const corePropertiesPath = "docProps/core.xml"

// maxCorePropertiesSize bounds the decompressed size of the core properties
// part.
const maxCorePropertiesSize = 1 << 20

var ooxmlDateFields = map[string]bool{
	"created":     true,
	"modified":    true,
	"lastPrinted": true,
}

// OOXML extracts the core properties of docx, xlsx and pptx documents.
type OOXML struct{}

func (OOXML) Format() string { return "ooxml" }

func (OOXML) Extract(data []byte) ([]metadata.Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var core *zip.File
	for _, f := range zr.File {
		if f.Name == corePropertiesPath {
			core = f
			break
		}
	}
	if core == nil {
		return nil, fmt.Errorf("%s not found", corePropertiesPath)
	}

	rc, err := core.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	props, err := io.ReadAll(io.LimitReader(rc, maxCorePropertiesSize+1))
	if err != nil {
		return nil, err
	}
	if len(props) > maxCorePropertiesSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", corePropertiesPath, maxCorePropertiesSize)
	}
	return parseCoreProperties(bytes.NewReader(props))
}

// parseCoreProperties returns the non-empty children of the root element in
// document order, named by their local name.
func parseCoreProperties(r io.Reader) ([]metadata.Entry, error) {
	d := xml.NewDecoder(r)
	entries := make([]metadata.Entry, 0)

	var (
		depth int
		name  string
		text  strings.Builder
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				name = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 {
				if v := strings.TrimSpace(text.String()); v != "" {
					e := metadata.NewEntry(name, v)
					if ooxmlDateFields[name] {
						e = e.WithDateFormat(time.RFC3339)
					}
					entries = append(entries, e)
				}
			}
			depth--
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unterminated core properties")
	}
	return entries, nil
}
