package models

// UploadedFile is the opaque per-request file handle: a declared type,
// a display name and the raw bytes. Not retained after processing.
type UploadedFile struct {
	Name string
	Type string
	Data []byte
}

// Chunk represents a split piece of the combined text
type Chunk struct {
	Content string
	ChunkID int
}

// ChunkEmbedding pairs a chunk with its vector and source metadata
type ChunkEmbedding struct {
	Content        string
	Embedding      []float32
	SourceFilename string
	ChunkID        int
}
