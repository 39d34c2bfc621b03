package extract

import (
	"bytes"
	"sort"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/authzed/connector-archive/pkg/metadata"
)

// ExifDateFormat is the layout of EXIF date tags.
const ExifDateFormat = "2006:01:02 15:04:05"

var exifDateFields = map[exif.FieldName]bool{
	exif.DateTime:          true,
	exif.DateTimeOriginal:  true,
	exif.DateTimeDigitized: true,
}

// EXIF extracts the tags of JPEG and TIFF images.
type EXIF struct{}

func (EXIF) Format() string { return "exif" }

func (EXIF) Extract(data []byte) ([]metadata.Entry, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	w := &exifWalker{}
	if err := x.Walk(w); err != nil {
		return nil, err
	}
	sort.Slice(w.entries, func(i, j int) bool {
		return w.entries[i].Name < w.entries[j].Name
	})
	return w.entries, nil
}

type exifWalker struct {
	entries []metadata.Entry
}

func (w *exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	var value string
	if tag.Format() == tiff.StringVal {
		v, err := tag.StringVal()
		if err != nil {
			return nil
		}
		value = v
	} else {
		value = tag.String()
	}
	if value == "" {
		return nil
	}

	e := metadata.NewEntry(string(name), value)
	if exifDateFields[name] {
		e = e.WithDateFormat(ExifDateFormat)
	}
	w.entries = append(w.entries, e)
	return nil
}
