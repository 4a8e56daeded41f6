package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

// DefaultMaxUploadBytes bounds the size of a multipart chapter upload
const DefaultMaxUploadBytes = 256 << 20

// DefaultMaxJSONBytes bounds the JSON body of manga create and update requests
const DefaultMaxJSONBytes = 1 << 20

// HandlePath is the route prefix under which display handles are served,
// relative to the handler's base path
const HandlePath = "/handles/"

// MangaHandler exposes a simplemanga.Service over HTTP
type MangaHandler struct {
	service        simplemanga.Service
	logger         *slog.Logger
	maxUploadBytes int64
	maxJSONBytes   int64
	basePath       string
}

// HandlerOption configures a MangaHandler
type HandlerOption func(*MangaHandler)

// WithLogger sets the handler logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *MangaHandler) {
		h.logger = logger
	}
}

// WithMaxUploadBytes bounds multipart request bodies
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *MangaHandler) {
		h.maxUploadBytes = n
	}
}

// WithMaxJSONBytes bounds JSON request bodies
func WithMaxJSONBytes(n int64) HandlerOption {
	return func(h *MangaHandler) {
		h.maxJSONBytes = n
	}
}

// WithBasePath sets the prefix the handler is mounted under, such as
// "/api/v1". Page URLs in responses and update manifests carry it.
func WithBasePath(path string) HandlerOption {
	return func(h *MangaHandler) {
		h.basePath = strings.TrimRight(path, "/")
	}
}

func NewMangaHandler(service simplemanga.Service, opts ...HandlerOption) *MangaHandler {
	h := &MangaHandler{
		service:        service,
		logger:         slog.Default(),
		maxUploadBytes: DefaultMaxUploadBytes,
		maxJSONBytes:   DefaultMaxJSONBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for every endpoint
func (h *MangaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	limitJSON := RequestSizeLimitMiddleware(h.maxJSONBytes)
	r.Route("/mangas", func(r chi.Router) {
		r.Get("/", h.ListMangas)
		r.With(limitJSON).Post("/", h.CreateManga)
		r.Route("/{manga_id}", func(r chi.Router) {
			r.Get("/", h.GetManga)
			r.With(limitJSON).Patch("/", h.UpdateManga)
			r.Delete("/", h.DeleteManga)
			r.Post("/chapters", h.AddChapterVersion)
			r.Put("/chapters/{chapter_id}/versions/{language}", h.UpdateChapterVersion)
			r.Delete("/chapters/{chapter_id}", h.DeleteChapter)
		})
	})
	r.Get(HandlePath+"{handle_id}", h.ServeHandle)
	r.Get("/events", h.StreamEvents)
	r.Route("/admin", func(r chi.Router) {
		r.Get("/verify", h.Verify)
		r.Post("/gc", h.CollectOrphans)
	})
	return r
}

// Request / response types

// CreateMangaRequest is the body of POST /mangas
type CreateMangaRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url,omitempty"`
}

// UpdateMangaRequest is the body of PATCH /mangas/{id}. Omitted fields are
// left unchanged.
type UpdateMangaRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	CoverURL    *string `json:"cover_url,omitempty"`
}

// PageManifestItem is one entry of the "pages" manifest of a version update.
// File names the multipart field holding a fresh upload; the other fields
// describe a page kept as-is.
type PageManifestItem struct {
	URL          string `json:"url,omitempty"`
	ImageID      string `json:"image_id,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	IsDoublePage bool   `json:"is_double_page,omitempty"`
	File         string `json:"file,omitempty"`
}

// OrphansResponse is returned by POST /admin/gc
type OrphansResponse struct {
	Deleted []string `json:"deleted"`
	Count   int      `json:"count"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Manga endpoints

func (h *MangaHandler) ListMangas(w http.ResponseWriter, r *http.Request) {
	mangas := h.service.Mangas()
	for _, m := range mangas {
		h.exposeHandles(m)
	}
	render.JSON(w, r, mangas)
}

func (h *MangaHandler) CreateManga(w http.ResponseWriter, r *http.Request) {
	var req CreateMangaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "Failed to decode request", err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		h.badRequest(w, r, "Title is required", nil)
		return
	}

	manga, err := h.service.AddManga(r.Context(), simplemanga.AddMangaRequest{
		Title:       req.Title,
		Description: req.Description,
		CoverURL:    req.CoverURL,
	})
	if err != nil {
		h.fail(w, r, "Failed to create manga", err)
		return
	}

	h.exposeHandles(manga)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, manga)
}

func (h *MangaHandler) GetManga(w http.ResponseWriter, r *http.Request) {
	manga, ok := h.service.GetManga(chi.URLParam(r, "manga_id"))
	if !ok {
		h.notFound(w, r)
		return
	}
	h.exposeHandles(manga)
	render.JSON(w, r, manga)
}

func (h *MangaHandler) UpdateManga(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "manga_id")
	var req UpdateMangaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "Failed to decode request", err)
		return
	}
	if !h.exists(w, r, id) {
		return
	}

	err := h.service.UpdateManga(r.Context(), simplemanga.UpdateMangaRequest{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		CoverURL:    req.CoverURL,
	})
	if err != nil {
		h.fail(w, r, "Failed to update manga", err)
		return
	}
	h.GetManga(w, r)
}

func (h *MangaHandler) DeleteManga(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "manga_id")
	if err := h.service.DeleteManga(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete manga", err)
		return
	}
	h.logger.Info("Manga deleted", "manga_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Chapter endpoints

func (h *MangaHandler) AddChapterVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "manga_id")
	if !h.exists(w, r, id) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.badRequest(w, r, "Failed to parse multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	number, err := strconv.ParseFloat(r.FormValue("number"), 64)
	if err != nil {
		h.badRequest(w, r, "Invalid chapter number", err)
		return
	}
	language := r.FormValue("language")
	if language == "" {
		h.badRequest(w, r, "Language is required", nil)
		return
	}
	files, err := readFiles(r.MultipartForm.File["files"])
	if err != nil {
		h.badRequest(w, r, "Failed to read files", err)
		return
	}
	if len(files) == 0 {
		h.badRequest(w, r, "At least one file is required", nil)
		return
	}

	err = h.service.AddChapterVersion(r.Context(), simplemanga.AddChapterVersionRequest{
		MangaID:  id,
		Number:   number,
		Language: language,
		Files:    files,
	})
	if err != nil {
		h.fail(w, r, "Failed to add chapter version", err)
		return
	}

	render.Status(r, http.StatusCreated)
	h.GetManga(w, r)
}

func (h *MangaHandler) UpdateChapterVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "manga_id")
	chapterID := chi.URLParam(r, "chapter_id")
	language := chi.URLParam(r, "language")
	if !h.exists(w, r, id) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.badRequest(w, r, "Failed to parse multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var manifest []PageManifestItem
	if err := json.Unmarshal([]byte(r.FormValue("pages")), &manifest); err != nil {
		h.badRequest(w, r, "Invalid pages manifest", err)
		return
	}

	pages := make([]simplemanga.PageInput, len(manifest))
	for i, item := range manifest {
		page := simplemanga.PageInput{
			URL:          h.internalURL(item.URL),
			ImageID:      item.ImageID,
			FileName:     item.FileName,
			IsDoublePage: item.IsDoublePage,
		}
		if item.File != "" {
			headers := r.MultipartForm.File[item.File]
			if len(headers) != 1 {
				h.badRequest(w, r, fmt.Sprintf("Page %d references missing file field %q", i+1, item.File), nil)
				return
			}
			files, err := readFiles(headers)
			if err != nil {
				h.badRequest(w, r, "Failed to read files", err)
				return
			}
			page.File = &files[0]
		}
		pages[i] = page
	}

	err := h.service.UpdateChapterVersion(r.Context(), simplemanga.UpdateChapterVersionRequest{
		MangaID:   id,
		ChapterID: chapterID,
		Language:  language,
		Pages:     pages,
	})
	if err != nil {
		h.fail(w, r, "Failed to update chapter version", err)
		return
	}
	h.GetManga(w, r)
}

func (h *MangaHandler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "manga_id")
	chapterID := chi.URLParam(r, "chapter_id")
	if err := h.service.DeleteChapter(r.Context(), id, chapterID); err != nil {
		h.fail(w, r, "Failed to delete chapter", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeHandle writes the bytes behind a display handle
func (h *MangaHandler) ServeHandle(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := h.service.OpenHandle(simplemanga.HandleScheme + chi.URLParam(r, "handle_id"))
	if !ok {
		h.notFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600, immutable")
	w.Write(data)
}

// Admin endpoints

func (h *MangaHandler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Verify(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to verify catalog", err)
		return
	}
	render.JSON(w, r, report)
}

func (h *MangaHandler) CollectOrphans(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.CollectOrphans(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to collect orphans", err)
		return
	}
	render.JSON(w, r, OrphansResponse{Deleted: deleted, Count: len(deleted)})
}

// Helpers

func (h *MangaHandler) exists(w http.ResponseWriter, r *http.Request, id string) bool {
	if _, ok := h.service.GetManga(id); !ok {
		h.notFound(w, r)
		return false
	}
	return true
}

func (h *MangaHandler) notFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, ErrorResponse{Error: "not found", RequestID: RequestID(r.Context())})
}

func (h *MangaHandler) badRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Warn(msg, "request_id", RequestID(r.Context()), "path", r.URL.Path, "err", err)
	status := http.StatusBadRequest
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		status = http.StatusRequestEntityTooLarge
	}
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg, RequestID: RequestID(r.Context())})
}

// fail maps service errors to status codes: unreachable stores are 502,
// everything else is 500.
func (h *MangaHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "request_id", RequestID(r.Context()), "path", r.URL.Path, "err", err)
	status := http.StatusInternalServerError
	if simplemanga.IsUnreachable(err) {
		status = http.StatusBadGateway
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error(), RequestID: RequestID(r.Context())})
}

func readFiles(headers []*multipart.FileHeader) ([]simplemanga.File, error) {
	files := make([]simplemanga.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Filename == "" {
			return nil, simplemanga.ErrEmptyFileName
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, simplemanga.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

// handlePrefix is the path handles are served under as seen by clients.
func (h *MangaHandler) handlePrefix() string {
	return h.basePath + HandlePath
}

// exposeHandles rewrites display handles into servable paths.
func (h *MangaHandler) exposeHandles(m *simplemanga.Manga) {
	m.CoverURL = h.externalURL(m.CoverURL)
	for _, c := range m.Chapters {
		for _, pages := range c.Pages {
			for _, p := range pages {
				p.URL = h.externalURL(p.URL)
			}
		}
	}
}

func (h *MangaHandler) externalURL(url string) string {
	if id, ok := simplemanga.HandleID(url); ok {
		return h.handlePrefix() + id
	}
	return url
}

func (h *MangaHandler) internalURL(url string) string {
	if id, ok := strings.CutPrefix(url, h.handlePrefix()); ok && id != "" {
		return simplemanga.HandleScheme + id
	}
	return url
}
