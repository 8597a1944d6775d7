package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/galleryplan/engine/internal/api/types"
	"github.com/galleryplan/engine/internal/services"
)

type LinksHandler struct {
	svc      services.LinkService
	validate interface{ Struct(any) error }
}

func NewLinksHandler(svc services.LinkService, v interface{ Struct(any) error }) *LinksHandler {
	return &LinksHandler{svc: svc, validate: v}
}

func (h *LinksHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req types.AddArtworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}

	project, created, err := h.svc.AddArtwork(r.Context(), id, req.ArtworkID)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	data := types.AddArtworkData{
		ProjectResponse: types.NewProjectResponse(project),
		Created:         created,
	}
	writeJSON(w, status, types.APIResponse{Success: true, Data: data})
}

func (h *LinksHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	links, err := h.svc.ListLinks(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    types.NewLinkResponses(links),
		Meta:    &types.Meta{Total: int64(len(links))},
	})
}

func (h *LinksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	externalID, ok := artworkID(w, r)
	if !ok {
		return
	}
	link, err := h.svc.GetLink(r.Context(), id, externalID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: types.NewLinkResponse(link)})
}

func (h *LinksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	externalID, ok := artworkID(w, r)
	if !ok {
		return
	}
	var req types.LinkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}

	link, project, err := h.svc.UpdateLink(r.Context(), id, externalID, &services.UpdateLinkInput{
		Notes:   req.Notes,
		Visited: req.Visited,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	data := types.UpdateLinkData{Link: types.NewLinkResponse(link)}
	if project != nil {
		p := types.NewProjectResponse(project)
		data.Project = &p
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: data})
}

func artworkID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "externalID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeErrorStr(w, http.StatusBadRequest, "invalid artwork id")
		return 0, false
	}
	return uint(id), true
}
