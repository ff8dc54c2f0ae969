package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyReference is returned when a document reference carries no payload.
var ErrEmptyReference = errors.New("document reference is empty")

// DocumentReference is the serialized form of a Document exchanged between
// pipeline stages. It holds either the document itself or a pointer to a blob
// containing it. Use Parse to find out which.
type DocumentReference json.RawMessage

// PayloadPointer locates a document that was written out-of-line because it
// was too large to pass between stages directly.
type PayloadPointer struct {
	Offloaded  bool     `json:"offloaded"`
	GCSUri     string   `json:"gcsUri"`
	DocumentID string   `json:"documentId,omitempty"`
	SectionIDs []string `json:"sectionIds,omitempty"`
}

// Reference is a parsed DocumentReference: InlineReference or PointerReference.
type Reference interface {
	isReference()
}

// InlineReference carries the document directly.
type InlineReference struct {
	Document *Document
}

// PointerReference carries the location of an offloaded document.
type PointerReference struct {
	Pointer PayloadPointer
}

func (InlineReference) isReference()  {}
func (PointerReference) isReference() {}

// NewInlineReference encodes doc as an inline reference.
func NewInlineReference(doc *Document) (DocumentReference, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
	}
	return DocumentReference(b), nil
}

// NewPointerReference encodes p as an out-of-line reference.
func NewPointerReference(p PayloadPointer) (DocumentReference, error) {
	p.Offloaded = true
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload pointer %s: %w", p.GCSUri, err)
	}
	return DocumentReference(b), nil
}

// Parse decodes the reference into one of its two variants.
func (r DocumentReference) Parse() (Reference, error) {
	trimmed := bytes.TrimSpace(r)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyReference
	}

	var probe struct {
		Offloaded bool `json:"offloaded"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("document reference is not a JSON object: %w", err)
	}

	if probe.Offloaded {
		var p PayloadPointer
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, fmt.Errorf("invalid payload pointer: %w", err)
		}
		if p.GCSUri == "" {
			return nil, fmt.Errorf("payload pointer has no gcsUri")
		}
		return PointerReference{Pointer: p}, nil
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("invalid inline document: %w", err)
	}
	return InlineReference{Document: &doc}, nil
}

// IsEmpty reports whether the reference carries no payload at all.
func (r DocumentReference) IsEmpty() bool {
	trimmed := bytes.TrimSpace(r)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// MarshalJSON returns the raw reference, or null when empty.
func (r DocumentReference) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON keeps a copy of the raw reference. Validation is deferred to
// Parse so that malformed references surface as load failures.
func (r *DocumentReference) UnmarshalJSON(data []byte) error {
	if r == nil {
		return errors.New("models.DocumentReference: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[0:0], data...)
	return nil
}
