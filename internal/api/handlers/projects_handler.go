package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/galleryplan/engine/internal/api/types"
	"github.com/galleryplan/engine/internal/services"
)

type ProjectsHandler struct {
	svc      services.ProjectService
	validate interface{ Struct(any) error }
}

func NewProjectsHandler(svc services.ProjectService, v interface{ Struct(any) error }) *ProjectsHandler {
	return &ProjectsHandler{svc: svc, validate: v}
}

func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]types.ProjectResponse, 0, len(items))
	for i := range items {
		out = append(out, types.NewProjectResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: out, Meta: &types.Meta{Total: int64(len(out))}})
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid start_date")
		return
	}

	project, fetchErrs, err := h.svc.CreateProject(r.Context(), &services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   startDate,
		ArtworkIDs:  req.ArtworkIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	data := types.CreateProjectData{
		ProjectResponse: types.NewProjectResponse(project),
		FetchErrors:     fetchErrs,
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: data})
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	project, err := h.svc.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: types.NewProjectResponse(project)})
}

func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req types.ProjectUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid start_date")
		return
	}

	project, err := h.svc.UpdateProject(r.Context(), id, &services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   startDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: types.NewProjectResponse(project)})
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteProject(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

func projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid project id")
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, types.HTTPStatus(err), types.APIResponse{Success: false, Error: types.FromAppError(err)})
}

func writeErrorStr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.APIResponse{Success: false, Error: &types.APIError{Code: "invalid", Message: msg}})
}
