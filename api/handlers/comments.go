package handlers

import (
	"net/http"

	"reportdesk/core/comments"
	"reportdesk/core/notify"
	"reportdesk/core/utils"
)

type CommentsHandler struct {
	svc      *comments.Service
	notifier notify.Notifier
	logger   *utils.Logger
}

func NewCommentsHandler(svc *comments.Service, notifier notify.Notifier, logger *utils.Logger) *CommentsHandler {
	return &CommentsHandler{svc: svc, notifier: notifier, logger: logger}
}

func (h *CommentsHandler) List(w http.ResponseWriter, r *http.Request) {
	eventID, id := scopeParams(r)
	items, err := h.svc.ListComments(r.Context(), eventID, id, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, h.logger, "comments.list", err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (h *CommentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in comments.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.EventID, in.IncidentID = scopeParams(r)
	in.AuthorID = CurrentUserID(r)
	c, err := h.svc.CreateComment(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, "comments.create", err)
		return
	}
	if h.notifier != nil {
		if err := h.notifier.NotifyIncidentEvent(r.Context(), c.IncidentID, notify.IncidentCommentAdded, in.AuthorID); err != nil {
			h.logger.Warnf("notify %s incident=%s: %v", notify.IncidentCommentAdded, c.IncidentID, err)
		}
	}
	writeData(w, http.StatusCreated, c)
}

func (h *CommentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, id := scopeParams(r)
	c, err := h.svc.GetComment(r.Context(), eventID, id, urlParam(r, "commentID"), CurrentUserID(r))
	if err != nil {
		writeServiceError(w, h.logger, "comments.get", err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (h *CommentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in comments.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.EventID, in.IncidentID = scopeParams(r)
	in.CommentID = urlParam(r, "commentID")
	in.UserID = CurrentUserID(r)
	c, err := h.svc.UpdateComment(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, "comments.update", err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (h *CommentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	eventID, id := scopeParams(r)
	if err := h.svc.DeleteComment(r.Context(), eventID, id, urlParam(r, "commentID"), CurrentUserID(r)); err != nil {
		writeServiceError(w, h.logger, "comments.delete", err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *CommentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	eventID, id := scopeParams(r)
	items, err := h.svc.SearchComments(r.Context(), eventID, id, CurrentUserID(r), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, h.logger, "comments.search", err)
		return
	}
	writeData(w, http.StatusOK, items)
}
