package object

import "github.com/biogit/biogit/hash"

// Blob is an opaque byte sequence representing file content (spec.md §3).
type Blob struct {
	Content []byte
}

// NewBlob wraps content as a Blob.
func NewBlob(content []byte) *Blob { return &Blob{Content: content} }

// Encode returns the raw framed payload "blob <N>\0<content>".
func (b *Blob) Encode() []byte { return Frame(BlobObject, b.Content) }

// Hash returns the SHA-1 of the blob's framed payload.
func (b *Blob) Hash() hash.Hash { return HashOf(BlobObject, b.Content) }

// DecodeBlob builds a Blob from a body already stripped of its header
// (i.e. the second return value of Unframe).
func DecodeBlob(body []byte) *Blob {
	return &Blob{Content: body}
}
