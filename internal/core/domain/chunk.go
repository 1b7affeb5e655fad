package domain

// Chunk is a retrieved passage with provenance metadata and the similarity of
// its embedding to the query. Produced by retrieval, enriched in place as it
// flows through dedup and rerank; the text itself is never mutated.
type Chunk struct {
	ChunkID      string       `json:"chunkId"`
	Text         string       `json:"text"`
	FileName     string       `json:"fileName"`
	SourceFormat SourceFormat `json:"sourceFormat"`
	LocationRef  string       `json:"locationRef"`
	Similarity   float64      `json:"similarity"`
}

// SearchHit is one raw nearest-neighbor result from the vector store. The
// distance is whatever metric the store reports; conversion to similarity is
// the retriever's job.
type SearchHit struct {
	ChunkID      string
	Text         string
	FileName     string
	SourceFormat SourceFormat
	LocationRef  string
	Distance     float64
}
