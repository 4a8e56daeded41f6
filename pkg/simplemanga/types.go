package simplemanga

// Manga is a top-level catalog entry representing one titled work.
type Manga struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CoverURL    string     `json:"cover_url,omitempty"`
	Chapters    []*Chapter `json:"chapters"`
}

// Chapter is a numbered story unit holding one page sequence per language.
//
// Pages maps a language tag to the complete, independent page sequence of
// that version. Number is unique within a Manga; fractional numbers are
// allowed for extra chapters (e.g. 10.5).
type Chapter struct {
	ID     string             `json:"id"`
	Number float64            `json:"number"`
	Pages  map[string][]*Page `json:"pages"`
}

// Page is one positioned unit of content within a version.
type Page struct {
	PageNumber   int    `json:"page_number"`
	URL          string `json:"url,omitempty"`
	ImageID      string `json:"image_id,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	IsDoublePage bool   `json:"is_double_page,omitempty"`
}

// File is a freshly selected binary to be stored as a page image.
type File struct {
	Name string
	Data []byte
}

// UploadedImage pairs the durable reference of a stored image with the
// display handle acquired for it.
type UploadedImage struct {
	ImageID string
	URL     string
}

// Clone returns a deep copy of the manga.
func (m *Manga) Clone() *Manga {
	if m == nil {
		return nil
	}
	c := *m
	c.Chapters = make([]*Chapter, len(m.Chapters))
	for i, ch := range m.Chapters {
		c.Chapters[i] = ch.Clone()
	}
	return &c
}

// Clone returns a deep copy of the chapter.
func (c *Chapter) Clone() *Chapter {
	if c == nil {
		return nil
	}
	cc := *c
	cc.Pages = make(map[string][]*Page, len(c.Pages))
	for lang, pages := range c.Pages {
		cc.Pages[lang] = clonePages(pages)
	}
	return &cc
}

// ImageIDs returns the distinct image references across all versions of the
// chapter.
func (c *Chapter) ImageIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, pages := range c.Pages {
		for _, p := range pages {
			if p.ImageID == "" {
				continue
			}
			if _, ok := seen[p.ImageID]; ok {
				continue
			}
			seen[p.ImageID] = struct{}{}
			ids = append(ids, p.ImageID)
		}
	}
	return ids
}

// chapter returns the chapter with the given ID, or nil.
func (m *Manga) chapter(id string) *Chapter {
	for _, c := range m.Chapters {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// chapterByNumber returns the chapter with the given number, or nil.
func (m *Manga) chapterByNumber(number float64) *Chapter {
	for _, c := range m.Chapters {
		if c.Number == number {
			return c
		}
	}
	return nil
}

func clonePages(pages []*Page) []*Page {
	if pages == nil {
		return nil
	}
	out := make([]*Page, len(pages))
	for i, p := range pages {
		pc := *p
		out[i] = &pc
	}
	return out
}
