package simplemanga

// Request DTOs

// AddMangaRequest contains parameters for creating a manga
type AddMangaRequest struct {
	Title       string
	Description string
	CoverURL    string
}

// UpdateMangaRequest contains parameters for updating manga metadata.
// Nil fields are left unchanged.
type UpdateMangaRequest struct {
	ID          string
	Title       *string
	Description *string
	CoverURL    *string
}

// AddChapterVersionRequest contains parameters for uploading one language
// version of a chapter
type AddChapterVersionRequest struct {
	MangaID  string
	Number   float64
	Language string
	Files    []File
}

// UpdateChapterVersionRequest replaces one language version of a chapter.
//
// Pages lists the complete new version in reading order. Items carrying a
// File are uploaded; the others are kept as-is with their URL, ImageID and
// FileName.
type UpdateChapterVersionRequest struct {
	MangaID   string
	ChapterID string
	Language  string
	Pages     []PageInput
}

// PageInput is one page of an updated version.
type PageInput struct {
	URL          string
	ImageID      string
	FileName     string
	IsDoublePage bool
	File         *File
}
