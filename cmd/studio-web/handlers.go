package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-photo-studio/internal/download"
	"github.com/fpang/gemini-photo-studio/internal/ingest"
	"github.com/fpang/gemini-photo-studio/internal/workflow"
)

// server holds the workflow controller behind the HTTP surface. All state
// lives in the controller; handlers only translate requests and responses.
type server struct {
	wf          *workflow.Controller
	downloadDir string
}

func newServer(wf *workflow.Controller, downloadDir string) *server {
	return &server{wf: wf, downloadDir: downloadDir}
}

func (s *server) register(mux *http.ServeMux) {
	mux.HandleFunc("/api/pick", s.handlePick)
	mux.HandleFunc("/api/batch", s.handleBatch)
	mux.HandleFunc("/api/edit", s.handleEdit)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/select", s.handleSelect)
	mux.HandleFunc("/api/selection/clear", s.handleSelectionClear)
	mux.HandleFunc("/api/download", s.handleDownload)
	mux.HandleFunc("/api/download/zip", s.handleDownloadZip)
}

// resultView is the JSON shape of one gallery entry.
type resultView struct {
	ID       string `json:"id"`
	Image    string `json:"image"` // data URI
	MIMEType string `json:"mimeType"`
	Note     string `json:"note,omitempty"`
	Selected bool   `json:"selected"`
}

// stateView is the JSON shape of the workflow snapshot.
type stateView struct {
	Files    []string     `json:"files"`
	Previews []string     `json:"previews"`
	Results  []resultView `json:"results"`
	Prompt   string       `json:"prompt"`
	Editing  bool         `json:"editing"`
	Error    string       `json:"error,omitempty"`
}

func viewOf(snap workflow.Snapshot) stateView {
	view := stateView{
		Files:    make([]string, 0, len(snap.Uploads)),
		Previews: snap.Previews,
		Results:  make([]resultView, 0, len(snap.Results)),
		Prompt:   snap.Prompt,
		Editing:  snap.Editing,
		Error:    snap.ErrMessage,
	}
	if view.Previews == nil {
		view.Previews = []string{}
	}
	for _, up := range snap.Uploads {
		view.Files = append(view.Files, up.Name)
	}
	for _, res := range snap.Results {
		view.Results = append(view.Results, resultView{
			ID:       res.ID,
			Image:    "data:" + res.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(res.Data),
			MIMEType: res.MIMEType,
			Note:     res.Note,
			Selected: snap.SelectedID[res.ID],
		})
	}
	return view
}

// POST /api/pick
// Opens a native OS file picker and returns the selected paths. Picking does
// not replace the batch; the client follows up with /api/batch.
func (s *server) handlePick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	selected, err := zenity.SelectFileMultiple(
		zenity.Title("Select images to edit"),
		zenity.FileFilters{
			{
				Name: "Image files",
				Patterns: []string{
					"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp",
					"*.heic", "*.heif",
				},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"paths":    []string{},
				"canceled": true,
			})
			return
		}
		log.Error().Err(err).Msg("File picker failed")
		httpError(w, http.StatusInternalServerError, "file picker failed")
		return
	}

	log.Info().Int("count", len(selected)).Msg("Files picked via native dialog")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"paths":    selected,
		"canceled": false,
	})
}

// POST /api/batch
// Body: {"paths": ["/abs/one.jpg", ...]}
// Replaces the upload batch wholesale and builds previews. Prior results and
// selection are cleared even when preview building fails.
func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Paths) == 0 {
		httpError(w, http.StatusBadRequest, "paths must not be empty")
		return
	}

	images, err := ingest.LoadFiles(req.Paths)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.wf.SetBatch(r.Context(), images); err != nil {
		if errors.Is(err, workflow.ErrBatchSuperseded) {
			respondJSON(w, http.StatusOK, map[string]bool{"superseded": true})
			return
		}
		httpError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, viewOf(s.wf.Snapshot()))
}

// POST /api/edit
// Body: {"prompt": "watercolor style"}
// Submits one edit for the current batch. Rejected while another edit is in
// flight; a resolution for a replaced batch is reported as discarded.
func (s *server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.wf.SubmitEdit(r.Context(), req.Prompt)
	if err != nil {
		var verr *workflow.ValidationError
		var editErr *workflow.EditRequestError
		switch {
		case errors.Is(err, workflow.ErrEditInFlight):
			httpError(w, http.StatusConflict, err.Error())
		case errors.Is(err, workflow.ErrBatchSuperseded):
			respondJSON(w, http.StatusOK, map[string]bool{"discarded": true})
		case errors.As(err, &verr):
			httpError(w, http.StatusBadRequest, verr.Reason)
		case errors.As(err, &editErr):
			httpError(w, http.StatusBadGateway, editErr.Message)
		default:
			httpError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"result": resultView{
			ID:       res.ID,
			Image:    "data:" + res.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(res.Data),
			MIMEType: res.MIMEType,
			Note:     res.Note,
		},
	})
}

// GET /api/state
func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, viewOf(s.wf.Snapshot()))
}

// POST /api/select
// Body: {"id": "edit-3-ab12cd34"}
func (s *server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	selected := s.wf.ToggleSelect(req.ID)
	respondJSON(w, http.StatusOK, map[string]bool{"selected": selected})
}

// POST /api/selection/clear
func (s *server) handleSelectionClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.wf.ClearSelection()
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// POST /api/download
// Saves the selected results into the configured download directory, in
// gallery order, and returns the written paths.
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	results := s.wf.SelectedResults()
	paths, err := download.SaveSelection(s.downloadDir, results)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"saved": paths})
}

// GET /api/download/zip
// Streams the selected results as a single ZIP archive.
func (s *server) handleDownloadZip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	results := s.wf.SelectedResults()
	if len(results) == 0 {
		httpError(w, http.StatusBadRequest, "nothing selected to download")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+download.SanitizeZipName("edited-images"))
	if err := download.WriteZip(w, results); err != nil {
		log.Error().Err(err).Msg("Failed to stream zip")
	}
}
