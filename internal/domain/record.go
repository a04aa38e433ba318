package domain

// VectorRecord is one item written to the vector index.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}
