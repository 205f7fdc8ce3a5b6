package model

type Flashcard struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	NoteID string `json:"note_id"`
	Term   string `json:"term"`
	Front  string `json:"front"`
	Back   string `json:"back"`
	Ctime  int64  `json:"ctime"`
}
