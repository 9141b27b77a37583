package models

import "time"

// Document is a stored document's registry metadata. The raw payload lives in
// the registry; everything downstream references the document by ID.
type Document struct {
	ID         string
	Filename   string
	MimeType   string
	ByteSize   int64
	UploadedAt time.Time
}

// ChunkMeta carries the source-document identity attached to every chunk.
type ChunkMeta struct {
	DocumentID string
	Filename   string
}

// Chunk is a bounded span of a document's text, the unit of embedding and
// retrieval. Index is 0-based and defines original order; Start and End are
// the character offsets of the chunk within the extracted source text.
type Chunk struct {
	DocumentID string
	Filename   string
	Index      int
	Content    string
	Start      int
	End        int
}

// Turn is one question/answer exchange in a conversation session.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// IngestRequest is the inbound ingestion payload.
type IngestRequest struct {
	DocumentID string
	Filename   string
	MimeType   string
	Raw        []byte
}

// QueryRequest is a single conversational question. DocumentIDs restricts
// retrieval to the selected documents; an empty set means unrestricted.
type QueryRequest struct {
	SessionKey  string
	Question    string
	DocumentIDs []string
}

// Source identifies a retrieved chunk used to ground an answer.
type Source struct {
	DocumentID string
	ChunkText  string
}

// QueryResponse is the synthesized answer together with its cited sources.
type QueryResponse struct {
	Answer  string
	Sources []Source
}
