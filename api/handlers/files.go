package handlers

import (
	"fmt"
	"net/http"
	"strconv"
)

func (h *IncidentsHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	eventID, id := scopeParams(r)
	files, err := h.svc.ListRelatedFiles(r.Context(), eventID, id, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, h.logger, "incidents.files.list", err)
		return
	}
	writeData(w, http.StatusOK, files)
}

func (h *IncidentsHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	files, ok := readFormFiles(w, r, "file")
	if !ok {
		return
	}
	if len(files) != 1 {
		WriteError(w, http.StatusBadRequest, "Exactly one file is required")
		return
	}
	eventID, id := scopeParams(r)
	f, err := h.svc.AddRelatedFile(r.Context(), eventID, id, CurrentUserID(r), files[0])
	if err != nil {
		writeServiceError(w, h.logger, "incidents.files.add", err)
		return
	}
	writeData(w, http.StatusCreated, f)
}

// DownloadFile streams the stored bytes rather than the JSON envelope.
func (h *IncidentsHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	eventID, id := scopeParams(r)
	f, err := h.svc.GetRelatedFile(r.Context(), eventID, id, urlParam(r, "fileID"), CurrentUserID(r))
	if err != nil {
		writeServiceError(w, h.logger, "incidents.files.get", err)
		return
	}
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

func (h *IncidentsHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	eventID, id := scopeParams(r)
	if err := h.svc.DeleteRelatedFile(r.Context(), eventID, id, urlParam(r, "fileID"), CurrentUserID(r)); err != nil {
		writeServiceError(w, h.logger, "incidents.files.delete", err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": true})
}
