package simplemanga

import (
	"cmp"
	"maps"
	"slices"
	"sort"
)

// sortChapters orders chapters ascending by number. Equal numbers keep their
// relative order.
func sortChapters(chapters []*Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Number < chapters[j].Number
	})
}

// normalize restores the ordering invariants of a loaded record: chapters
// sorted by number and pages numbered 1..n in stored order.
func normalize(m *Manga) {
	if m.Chapters == nil {
		m.Chapters = []*Chapter{}
	}
	sortChapters(m.Chapters)
	for _, c := range m.Chapters {
		if c.Pages == nil {
			c.Pages = make(map[string][]*Page)
		}
		for _, pages := range c.Pages {
			slices.SortStableFunc(pages, func(a, b *Page) int {
				return cmp.Compare(a.PageNumber, b.PageNumber)
			})
			for i, p := range pages {
				p.PageNumber = i + 1
			}
		}
	}
}

func pageImageIDs(pages []*Page) []string {
	var ids []string
	for _, p := range pages {
		if p.ImageID != "" {
			ids = append(ids, p.ImageID)
		}
	}
	return ids
}

// withoutRefs returns the distinct ids that are not in refs.
func withoutRefs(ids []string, refs map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := refs[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// versionURLs returns the display handles held by pages.
func versionURLs(pages []*Page) []string {
	var urls []string
	for _, p := range pages {
		if IsHandle(p.URL) {
			urls = append(urls, p.URL)
		}
	}
	return urls
}

// pageURLs returns every display handle held by the manga.
func pageURLs(m *Manga) []string {
	var urls []string
	if IsHandle(m.CoverURL) {
		urls = append(urls, m.CoverURL)
	}
	for _, c := range m.Chapters {
		for _, pages := range c.Pages {
			urls = append(urls, versionURLs(pages)...)
		}
	}
	return urls
}

// droppedURLs returns the handles of before that no page of after holds.
func droppedURLs(before, after []*Page) []string {
	live := make(map[string]struct{}, len(after))
	for _, url := range versionURLs(after) {
		live[url] = struct{}{}
	}
	var dropped []string
	for _, url := range versionURLs(before) {
		if _, ok := live[url]; !ok {
			dropped = append(dropped, url)
		}
	}
	return dropped
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	return slices.Sorted(maps.Keys(m))
}
