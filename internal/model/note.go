package model

// Note holds the same study material in up to two languages. A note is stale
// when Mtime is newer than IndexedAt.
type Note struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	FolderID         string `json:"folder_id"`
	Title            string `json:"title"`
	ContentZH        string `json:"content_zh"`
	ContentEN        string `json:"content_en"`
	SourceDocumentID string `json:"source_document_id,omitempty"`
	Ctime            int64  `json:"ctime"`
	Mtime            int64  `json:"mtime"`
	IndexedAt        int64  `json:"indexed_at"`
}

// SourceDocument is an uploaded file a note was imported from.
type SourceDocument struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	FileKey string `json:"file_key"`
	Mime    string `json:"mime"`
	Ctime   int64  `json:"ctime"`
}
