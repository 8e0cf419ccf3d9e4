package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vaanilabs/vaachak/internal/audio"
	"github.com/vaanilabs/vaachak/internal/config"
	"github.com/vaanilabs/vaachak/internal/files"
	"github.com/vaanilabs/vaachak/internal/generate"
	"github.com/vaanilabs/vaachak/internal/job"
	"github.com/vaanilabs/vaachak/internal/markdown"
	"github.com/vaanilabs/vaachak/internal/notify"
	"github.com/vaanilabs/vaachak/internal/protocol"
	"github.com/vaanilabs/vaachak/internal/synth"
)

// Server is the REST surface of the runtime: document discovery, parsing,
// generation with a streamed progress feed, previews and export.
type Server struct {
	cfg       config.Config
	log       *slog.Logger
	files     *files.Discovery
	gen       *generate.Service
	assembler *audio.Assembler
	notifier  *notify.Publisher
	recorder  generate.Recorder
	prosody   markdown.ProsodyTable
	version   string

	// configured reports whether the synthesis backend has credentials.
	configured func() bool
}

type Deps struct {
	Files      *files.Discovery
	Generator  *generate.Service
	Assembler  *audio.Assembler
	Notifier   *notify.Publisher
	Recorder   generate.Recorder
	Version    string
	Configured func() bool
}

func NewServer(cfg config.Config, deps Deps, log *slog.Logger) *Server {
	configured := deps.Configured
	if configured == nil {
		configured = func() bool { return true }
	}
	return &Server{
		cfg:        cfg,
		log:        log.With(slog.String("component", "api")),
		files:      deps.Files,
		gen:        deps.Generator,
		assembler:  deps.Assembler,
		notifier:   deps.Notifier,
		recorder:   deps.Recorder,
		prosody:    markdown.ProsodyFromConfig(cfg.Prosody),
		version:    deps.Version,
		configured: configured,
	}
}

// Mount registers every route on the mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/files", s.handleListFiles)
	mux.HandleFunc("GET /api/files/{language}", s.handleListLanguage)
	mux.HandleFunc("GET /api/files/{language}/{filename}/content", s.handleFileContent)
	mux.HandleFunc("POST /api/files/write", s.handleWriteFile)

	mux.HandleFunc("POST /api/parse", s.handleParse)
	mux.HandleFunc("POST /api/parse/content", s.handleParseContent)

	mux.HandleFunc("POST /api/tts/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/tts/status/{job}", s.handleStatus)
	mux.HandleFunc("GET /api/tts/preview/{job}/{chunk}", s.handlePreview)
	mux.HandleFunc("POST /api/tts/export", s.handleExport)
	mux.HandleFunc("GET /api/tts/download/{job}", s.handleDownload)
	mux.HandleFunc("GET /api/tts/summary/{job}", s.handleSummary)
	mux.HandleFunc("DELETE /api/tts/jobs/{job}", s.handleEvict)

	mux.HandleFunc("GET /api/settings/defaults", s.handleSettingsDefaults)
	mux.HandleFunc("GET /api/settings/speakers", s.handleSettingsSpeakers)
	mux.HandleFunc("GET /api/settings/languages", s.handleSettingsLanguages)
}

// Handler wraps the mounted mux with the CORS allowlist.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Mount(mux)
	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.HTTP.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "healthy",
		"version":              s.version,
		"synth_api_configured": s.configured(),
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, _ *http.Request) {
	langs, err := s.files.ListAll()
	if err != nil {
		s.internalError(w, "list files", err)
		return
	}
	if langs == nil {
		langs = []files.LanguageFiles{}
	}
	writeJSON(w, http.StatusOK, langs)
}

func (s *Server) handleListLanguage(w http.ResponseWriter, r *http.Request) {
	language := r.PathValue("language")
	list, err := s.files.ListLanguage(language)
	if err != nil {
		s.fileError(w, err)
		return
	}
	if len(list) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no files found for language: %s", language))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	language := r.PathValue("language")
	filename := r.PathValue("filename")
	content, err := s.files.Content(language, filename)
	if err != nil {
		s.fileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"content":  content,
		"filename": filename,
		"language": language,
	})
}

type writeFileRequest struct {
	Content   string `json:"content"`
	Language  string `json:"language"`
	Filename  string `json:"filename"`
	Overwrite bool   `json:"overwrite"`
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	var req writeFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	filename := req.Filename
	if !strings.HasSuffix(filename, ".md") {
		filename += ".md"
	}
	path, err := s.files.Write(req.Language, filename, req.Content, req.Overwrite)
	if errors.Is(err, files.ErrExists) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   fmt.Sprintf("File already exists: %s. Set overwrite=true to replace.", filename),
		})
		return
	}
	if err != nil {
		s.fileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"path":    path,
		"message": fmt.Sprintf("File saved successfully: %s", filename),
	})
}

type parseRequest struct {
	Language     string `json:"language"`
	Filename     string `json:"filename"`
	MaxChunkSize int    `json:"max_chunk_size,omitempty"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content, err := s.files.Content(req.Language, req.Filename)
	if err != nil {
		s.fileError(w, err)
		return
	}
	doc := s.parser(req.MaxChunkSize).Parse(content, req.Filename, req.Language)
	writeJSON(w, http.StatusOK, doc)
}

type parseContentRequest struct {
	Content  string `json:"content"`
	Language string `json:"language"`
	Filename string `json:"filename"`
}

func (s *Server) handleParseContent(w http.ResponseWriter, r *http.Request) {
	var req parseContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Language == "" {
		req.Language = "hi"
	}
	if req.Filename == "" {
		req.Filename = "uploaded.md"
	}
	doc := s.parser(0).Parse(req.Content, req.Filename, req.Language)
	writeJSON(w, http.StatusOK, doc)
}

type generateRequest struct {
	FilePath string          `json:"file_path"`
	Settings *synth.Settings `json:"settings,omitempty"`
	Chunks   []int           `json:"chunks_to_generate,omitempty"`
}

// handleGenerate starts a job and streams its snapshots as NDJSON. The
// stream follows the generation live: one line per snapshot, the last line
// carrying completed status. Closing the connection abandons the run.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	language, filename, ok := splitDocPath(req.FilePath)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid file path")
		return
	}
	content, err := s.files.Content(language, filename)
	if err != nil {
		s.fileError(w, err)
		return
	}
	doc := s.parser(0).Parse(content, filename, language)

	settings := s.mergeSettings(req.Settings)
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobID, snapshots := s.gen.Generate(r.Context(), doc, settings, req.Chunks)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Job-Id", jobID)
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	for snap := range snapshots {
		if err := enc.Encode(snap); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.gen.Store().Snapshot(r.PathValue("job"))
	if err != nil {
		s.jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	chunkID, err := strconv.Atoi(r.PathValue("chunk"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chunk id")
		return
	}
	audioBytes, err := s.gen.Store().Fragment(r.PathValue("job"), chunkID)
	if err != nil {
		s.jobError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=chunk_%d.wav", chunkID))
	_, _ = w.Write(audioBytes)
}

type exportRequest struct {
	JobID    string `json:"job_id"`
	Filename string `json:"filename,omitempty"`
	Format   string `json:"format,omitempty"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Format == "" {
		req.Format = "mp3"
	}
	result, err := s.export(r, req.JobID, req.Filename, req.Format)
	if errors.Is(err, job.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"output_path":      result.Path,
		"file_size_bytes":  result.SizeBytes,
		"duration_seconds": result.DurationSeconds,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "mp3"
	}
	result, err := s.export(r, r.PathValue("job"), "", format)
	if errors.Is(err, job.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		s.internalError(w, "export", err)
		return
	}
	contentType := "audio/wav"
	if format == "mp3" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", result.Filename))
	http.ServeFile(w, r, result.Path)
}

// export assembles a job's fragments into a file, recording the output path
// on the job and announcing it on the bus.
func (s *Server) export(r *http.Request, jobID, filename, format string) (audio.ExportResult, error) {
	store := s.gen.Store()
	doc, err := store.Document(jobID)
	if err != nil {
		return audio.ExportResult{}, err
	}
	fragments, err := store.Fragments(jobID)
	if err != nil {
		return audio.ExportResult{}, err
	}
	result, err := s.assembler.Export(r.Context(), doc, fragments, filename, format)
	if err != nil {
		return audio.ExportResult{}, err
	}
	_ = store.SetOutputPath(jobID, result.Path)
	if s.recorder != nil {
		s.recorder.Record(r.Context(), jobID, "export_written", result)
	}
	if s.notifier != nil {
		s.notifier.ExportWritten(protocol.ExportWritten{
			JobID:           jobID,
			Path:            result.Path,
			Format:          result.Format,
			DurationSeconds: result.DurationSeconds,
		})
	}
	return result, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.gen.Store().Summary(r.PathValue("job"))
	if err != nil {
		s.jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job")
	if _, err := s.gen.Store().Snapshot(jobID); err != nil {
		s.jobError(w, err)
		return
	}
	s.gen.Store().Evict(jobID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "job_id": jobID})
}

func (s *Server) handleSettingsDefaults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, synth.SettingsFromConfig(s.cfg.Synth))
}

func (s *Server) handleSettingsSpeakers(w http.ResponseWriter, _ *http.Request) {
	type speaker struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Gender string `json:"gender"`
	}
	writeJSON(w, http.StatusOK, map[string][]speaker{"speakers": {
		{ID: "shubh", Name: "Shubh", Gender: "male"},
		{ID: "arvind", Name: "Arvind", Gender: "male"},
		{ID: "meera", Name: "Meera", Gender: "female"},
		{ID: "pavithra", Name: "Pavithra", Gender: "female"},
		{ID: "maitreyi", Name: "Maitreyi", Gender: "female"},
		{ID: "amol", Name: "Amol", Gender: "male"},
		{ID: "amartya", Name: "Amartya", Gender: "male"},
	}})
}

func (s *Server) handleSettingsLanguages(w http.ResponseWriter, _ *http.Request) {
	type language struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	writeJSON(w, http.StatusOK, map[string][]language{"languages": {
		{Code: "hi-IN", Name: "Hindi"},
		{Code: "en-IN", Name: "English (India)"},
		{Code: "gu-IN", Name: "Gujarati"},
		{Code: "bn-IN", Name: "Bengali"},
		{Code: "kn-IN", Name: "Kannada"},
		{Code: "ml-IN", Name: "Malayalam"},
		{Code: "mr-IN", Name: "Marathi"},
		{Code: "od-IN", Name: "Odia"},
		{Code: "pa-IN", Name: "Punjabi"},
		{Code: "ta-IN", Name: "Tamil"},
		{Code: "te-IN", Name: "Telugu"},
	}})
}

func (s *Server) parser(maxChunkSize int) *markdown.Parser {
	if maxChunkSize <= 0 {
		maxChunkSize = s.cfg.Chunking.MaxChunkChars
	}
	return markdown.NewParser(maxChunkSize, s.prosody)
}

// mergeSettings overlays request settings on the configured defaults; zero
// fields keep their default.
func (s *Server) mergeSettings(req *synth.Settings) synth.Settings {
	merged := synth.SettingsFromConfig(s.cfg.Synth)
	if req == nil {
		return merged
	}
	if req.TargetLanguageCode != "" {
		merged.TargetLanguageCode = req.TargetLanguageCode
	}
	if req.Speaker != "" {
		merged.Speaker = req.Speaker
	}
	if req.Pace > 0 {
		merged.Pace = req.Pace
	}
	if req.SpeechSampleRate > 0 {
		merged.SpeechSampleRate = req.SpeechSampleRate
	}
	if req.Model != "" {
		merged.Model = req.Model
	}
	if req.Temperature > 0 {
		merged.Temperature = req.Temperature
	}
	if req.HeadingLoudnessBoost > 0 {
		merged.HeadingLoudnessBoost = req.HeadingLoudnessBoost
	}
	if req.PauseAfterHeadingMS > 0 {
		merged.PauseAfterHeadingMS = req.PauseAfterHeadingMS
	}
	if req.PauseAfterBulletMS > 0 {
		merged.PauseAfterBulletMS = req.PauseAfterBulletMS
	}
	return merged
}

// splitDocPath accepts "language/filename.md" request paths.
func splitDocPath(path string) (language, filename string, ok bool) {
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (s *Server) fileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, files.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, files.ErrInvalidName):
		writeError(w, http.StatusForbidden, "Access denied: file must be within the documents directory")
	default:
		s.internalError(w, "file access", err)
	}
}

func (s *Server) jobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, job.ErrNoFragments):
		writeError(w, http.StatusNotFound, "Audio not found")
	default:
		s.internalError(w, "job access", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op+" failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
