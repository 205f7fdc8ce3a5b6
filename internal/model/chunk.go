package model

type ChunkRecord struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"note_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	Embedding []float32 `json:"embedding"`
	Position  int       `json:"position"`
	Ctime     int64     `json:"ctime"`
}

// ScoredChunk is a chunk ranked by the database.
type ScoredChunk struct {
	ChunkRecord
	Similarity float64
}

type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
