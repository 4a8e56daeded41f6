package simplemanga

import (
	"cmp"
	"context"
	"slices"
)

// DanglingRef is a page whose image reference has no object in the blob
// store.
type DanglingRef struct {
	MangaID    string `json:"manga_id"`
	ChapterID  string `json:"chapter_id"`
	Language   string `json:"language"`
	PageNumber int    `json:"page_number"`
	ImageID    string `json:"image_id"`
}

// ConsistencyReport compares the durable catalog with the blob store.
type ConsistencyReport struct {
	Blobs      int           `json:"blobs"`
	References int           `json:"references"`
	Orphans    []string      `json:"orphans"`
	Dangling   []DanglingRef `json:"dangling"`
}

// Consistent reports whether the catalog and the blob store agree.
func (r *ConsistencyReport) Consistent() bool {
	return len(r.Orphans) == 0 && len(r.Dangling) == 0
}

func (s *service) Verify(ctx context.Context) (*ConsistencyReport, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	report, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Consistency check finished",
		"blobs", report.Blobs,
		"references", report.References,
		"orphans", len(report.Orphans),
		"dangling", len(report.Dangling))
	return report, nil
}

func (s *service) CollectOrphans(ctx context.Context) ([]string, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	report, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.images.Release(ctx, report.Orphans); err != nil {
		s.logger.Error("Failed to collect orphans", "count", len(report.Orphans), "err", err)
		return nil, err
	}
	s.logger.Info("Orphans collected", "count", len(report.Orphans))
	return report.Orphans, nil
}

// scan must run with the gate held exclusively. Orphans are blobs referenced
// by neither the durable nor the in-memory catalog; dangling references are
// taken from the durable catalog.
func (s *service) scan(ctx context.Context) (*ConsistencyReport, error) {
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list blobs", "err", err)
		return nil, err
	}
	records, err := s.catalog.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to load catalog", "err", err)
		return nil, catalogError("get_all", "", err)
	}

	present := make(map[string]struct{}, len(blobs))
	for _, id := range blobs {
		present[id] = struct{}{}
	}

	report := &ConsistencyReport{Blobs: len(blobs), Orphans: []string{}, Dangling: []DanglingRef{}}
	durable := make(map[string]struct{})
	for _, m := range records {
		for _, c := range m.Chapters {
			for lang, pages := range c.Pages {
				for _, p := range pages {
					if p.ImageID == "" {
						continue
					}
					durable[p.ImageID] = struct{}{}
					if _, ok := present[p.ImageID]; !ok {
						report.Dangling = append(report.Dangling, DanglingRef{
							MangaID:    m.ID,
							ChapterID:  c.ID,
							Language:   lang,
							PageNumber: p.PageNumber,
							ImageID:    p.ImageID,
						})
					}
				}
			}
		}
	}
	report.References = len(durable)

	live := s.imageRefs(func(string, string, string) bool { return false }, nil)
	for _, id := range blobs {
		if _, ok := durable[id]; ok {
			continue
		}
		if _, ok := live[id]; ok {
			continue
		}
		report.Orphans = append(report.Orphans, id)
	}
	slices.Sort(report.Orphans)
	slices.SortFunc(report.Dangling, func(a, b DanglingRef) int {
		return cmp.Or(
			cmp.Compare(a.MangaID, b.MangaID),
			cmp.Compare(a.ChapterID, b.ChapterID),
			cmp.Compare(a.Language, b.Language),
			cmp.Compare(a.PageNumber, b.PageNumber),
		)
	})
	return report, nil
}
