package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"reportdesk/core/incidents"
	"reportdesk/core/notify"
	"reportdesk/core/utils"
)

const defaultMaxUploadBytes = 25 << 20

type IncidentsHandler struct {
	svc       *incidents.Service
	notifier  notify.Notifier
	logger    *utils.Logger
	maxUpload int64
}

func NewIncidentsHandler(svc *incidents.Service, notifier notify.Notifier, maxUpload int64, logger *utils.Logger) *IncidentsHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &IncidentsHandler{svc: svc, notifier: notifier, logger: logger, maxUpload: maxUpload}
}

// Create accepts a JSON body, or a multipart form with the JSON in the
// "payload" field and attachments in "files".
func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in incidents.CreateInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid upload")
			return
		}
		if err := json.Unmarshal([]byte(r.FormValue("payload")), &in); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		files, ok := readFormFiles(w, r, "files")
		if !ok {
			return
		}
		in.Files = files
	} else if !decodeJSON(w, r, &in) {
		return
	}
	in.EventID = urlParam(r, "eventID")
	in.ReporterID = CurrentUserID(r)
	inc, err := h.svc.CreateIncident(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, "incidents.create", err)
		return
	}
	h.notifyReport(r, inc.EventID, inc.ID, notify.IncidentSubmitted)
	writeData(w, http.StatusCreated, inc)
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := incidents.ListFilter{
		State:  q.Get("state"),
		Limit:  parseIntDefault(q.Get("limit"), 0),
		Offset: parseIntDefault(q.Get("offset"), 0),
	}
	items, err := h.svc.ListEventIncidents(r.Context(), urlParam(r, "eventID"), CurrentUserID(r), filter)
	if err != nil {
		writeServiceError(w, h.logger, "incidents.list", err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, id := scopeParams(r)
	view, err := h.svc.GetIncident(r.Context(), eventID, id, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, h.logger, "incidents.get", err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *IncidentsHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	var in incidents.StateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.EventID, in.IncidentID = scopeParams(r)
	in.UserID = CurrentUserID(r)
	change, err := h.svc.UpdateIncidentState(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, "incidents.state", err)
		return
	}
	h.notifyChange(r, change)
	writeData(w, http.StatusOK, change)
}

func (h *IncidentsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssignedToUserID *string `json:"assignedToUserId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	eventID, id := scopeParams(r)
	change, err := h.svc.AssignIncident(r.Context(), eventID, id, CurrentUserID(r), body.AssignedToUserID)
	if err != nil {
		writeServiceError(w, h.logger, "incidents.assign", err)
		return
	}
	h.notifyChange(r, change)
	writeData(w, http.StatusOK, change)
}

func (h *IncidentsHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	eventID, id := scopeParams(r)
	h.respondIncident(w, "incidents.title", func() (*incidents.Incident, error) {
		return h.svc.UpdateIncidentTitle(r.Context(), eventID, id, CurrentUserID(r), body.Title)
	})
}

func (h *IncidentsHandler) UpdateDescription(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	eventID, id := scopeParams(r)
	h.respondIncident(w, "incidents.description", func() (*incidents.Incident, error) {
		return h.svc.UpdateIncidentDescription(r.Context(), eventID, id, CurrentUserID(r), body.Description)
	})
}

func (h *IncidentsHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Location *string `json:"location"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	eventID, id := scopeParams(r)
	h.respondIncident(w, "incidents.location", func() (*incidents.Incident, error) {
		return h.svc.UpdateIncidentLocation(r.Context(), eventID, id, CurrentUserID(r), body.Location)
	})
}

func (h *IncidentsHandler) UpdateParties(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Parties *string `json:"parties"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	eventID, id := scopeParams(r)
	h.respondIncident(w, "incidents.parties", func() (*incidents.Incident, error) {
		return h.svc.UpdateIncidentParties(r.Context(), eventID, id, CurrentUserID(r), body.Parties)
	})
}

func (h *IncidentsHandler) UpdateIncidentDate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IncidentAt *time.Time `json:"incidentAt"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	eventID, id := scopeParams(r)
	h.respondIncident(w, "incidents.incident_at", func() (*incidents.Incident, error) {
		return h.svc.UpdateIncidentIncidentDate(r.Context(), eventID, id, CurrentUserID(r), body.IncidentAt)
	})
}

func (h *IncidentsHandler) UpdateSeverity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Severity string `json:"severity"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	eventID, id := scopeParams(r)
	h.respondIncident(w, "incidents.severity", func() (*incidents.Incident, error) {
		return h.svc.UpdateIncidentSeverity(r.Context(), eventID, id, CurrentUserID(r), body.Severity)
	})
}

func (h *IncidentsHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TagIDs []string `json:"tagIds"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	eventID, id := scopeParams(r)
	h.respondIncident(w, "incidents.tags", func() (*incidents.Incident, error) {
		return h.svc.UpdateIncidentTags(r.Context(), eventID, id, CurrentUserID(r), body.TagIDs)
	})
}

func (h *IncidentsHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var in incidents.BulkInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.EventID = urlParam(r, "eventID")
	in.UserID = CurrentUserID(r)
	res, err := h.svc.BulkUpdateIncidents(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, "incidents.bulk", err)
		return
	}
	// Collected validation problems travel in the body with updated=0.
	writeData(w, http.StatusOK, res)
}

func (h *IncidentsHandler) respondIncident(w http.ResponseWriter, op string, fn func() (*incidents.Incident, error)) {
	inc, err := fn()
	if err != nil {
		writeServiceError(w, h.logger, op, err)
		return
	}
	writeData(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) notifyChange(r *http.Request, change *incidents.Change) {
	if h.notifier == nil || change == nil || change.Incident == nil {
		return
	}
	for _, typ := range notify.ForStateChange(change.Notification()) {
		if err := h.notifier.NotifyIncidentEvent(r.Context(), change.Incident.ID, typ, CurrentUserID(r)); err != nil {
			h.logger.Warnf("notify %s incident=%s: %v", typ, change.Incident.ID, err)
		}
	}
}

func (h *IncidentsHandler) notifyReport(r *http.Request, eventID, incidentID string, typ notify.Type) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.NotifyReportEvent(r.Context(), eventID, incidentID, typ, CurrentUserID(r)); err != nil {
		h.logger.Warnf("notify %s incident=%s: %v", typ, incidentID, err)
	}
}

func readFormFiles(w http.ResponseWriter, r *http.Request, field string) ([]incidents.FileInput, bool) {
	if r.MultipartForm == nil {
		return nil, true
	}
	var out []incidents.FileInput
	for _, fh := range r.MultipartForm.File[field] {
		f, err := fh.Open()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid upload")
			return nil, false
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid upload")
			return nil, false
		}
		mimeType := fh.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		out = append(out, incidents.FileInput{Filename: fh.Filename, MimeType: mimeType, Data: data})
	}
	return out, true
}
