package metadata

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	require := require.New(t)

	notFound := fmt.Errorf("resolving sample: %w", &MappingNotFoundError{Search: "sample_S2_R1", Attribute: "tissue"})
	require.ErrorIs(notFound, ErrMappingNotFound)
	require.Contains(notFound.Error(), `"sample_S2_R1"`)
	require.Contains(notFound.Error(), `attribute "tissue"`)

	var mnf *MappingNotFoundError
	require.True(errors.As(notFound, &mnf))
	require.Equal("tissue", mnf.Attribute)

	loadErr := &LoaderError{Ref: "file:///tmp/samples.csv", Err: io.ErrUnexpectedEOF}
	require.ErrorIs(loadErr, io.ErrUnexpectedEOF)

	extractErr := &ContentExtractionError{Ref: "a.docx", Format: "ooxml", Err: io.EOF}
	require.ErrorIs(extractErr, io.EOF)
	require.Contains(extractErr.Error(), "ooxml")
}
