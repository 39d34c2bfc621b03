package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrMappingNotFound matches every MappingNotFoundError.
	ErrMappingNotFound = errors.New("mapping not found")

	// ErrAssemblerClosed matches every AssemblerClosedError.
	ErrAssemblerClosed = errors.New("assembler closed")
)

// MappingNotFoundError is returned when a mandatory key, attribute or
// canonical name cannot be resolved. It aborts the current file only.
type MappingNotFoundError struct {
	Search         string
	Attribute      string
	CollectionType string
	Tenant         string
}

func (e *MappingNotFoundError) Error() string {
	msg := fmt.Sprintf("no mapping found for %q", e.Search)
	if e.Attribute != "" {
		msg += fmt.Sprintf(" (attribute %q)", e.Attribute)
	}
	if e.CollectionType != "" {
		msg += fmt.Sprintf(" (collection type %q)", e.CollectionType)
	}
	if e.Tenant != "" {
		msg += fmt.Sprintf(" (tenant %q)", e.Tenant)
	}
	return msg
}

func (e *MappingNotFoundError) Is(target error) bool {
	return target == ErrMappingNotFound
}

// LoaderError wraps a failure to read or parse a tabular metadata source.
type LoaderError struct {
	Ref string
	Err error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("loading lookup table %s: %v", e.Ref, e.Err)
}

func (e *LoaderError) Unwrap() error {
	return e.Err
}

// ContentExtractionError wraps a failure to read or parse embedded document
// metadata.
type ContentExtractionError struct {
	Ref    string
	Format string
	Err    error
}

func (e *ContentExtractionError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("extracting content metadata from %s: %v", e.Ref, e.Err)
	}
	return fmt.Sprintf("extracting %s metadata from %s: %v", e.Format, e.Ref, e.Err)
}

func (e *ContentExtractionError) Unwrap() error {
	return e.Err
}

// AssemblerClosedError is returned by any mutation of a finalized assembler.
type AssemblerClosedError struct {
	Op string
}

func (e *AssemblerClosedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrAssemblerClosed)
}

func (e *AssemblerClosedError) Is(target error) bool {
	return target == ErrAssemblerClosed
}

// PathOrderingError is returned when a node is not the same path as, or a
// descendant of, the previously appended node.
type PathOrderingError struct {
	Previous string
	Path     string
}

func (e *PathOrderingError) Error() string {
	return fmt.Sprintf("collection %q is not nested under previous collection %q", e.Path, e.Previous)
}
