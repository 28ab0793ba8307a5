package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/folio/backend/internal/model"
	"github.com/folio/backend/internal/service"
	"github.com/folio/backend/pkg/requestcontext"
)

const maxBodyBytes = 64 << 10

// ContactHandler handles contact form submission and the operator endpoints.
type ContactHandler struct {
	contactService service.ContactService
}

// NewContactHandler creates a ContactHandler with the given service.
func NewContactHandler(contactService service.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// submitRequest is the expected JSON body for POST /api/contact.
type submitRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// submitResponse is the submitter's view of the stored contact.
type submitResponse struct {
	ID                string              `json:"id"`
	Status            model.ContactStatus `json:"status"`
	Priority          model.Priority      `json:"priority"`
	Tags              []string            `json:"tags"`
	CreatedAt         time.Time           `json:"created_at"`
	EstimatedResponse string              `json:"estimated_response"`
}

// Submit handles POST /api/contact.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	res, err := h.contactService.Submit(ctx, service.SubmitInput{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
		Source:  req.Source,
	}, service.RequestContext{
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		Language:  requestcontext.Language(ctx),
		Secure:    requestcontext.Secure(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	c := res.Contact
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		ID:                c.ID,
		Status:            c.Status,
		Priority:          c.Priority,
		Tags:              tags,
		CreatedAt:         c.CreatedAt,
		EstimatedResponse: res.EstimatedResponse,
	})
}

// AdminList handles GET /api/admin/contacts.
// Query params: status, priority, source, search, page, limit, sort, order (asc|desc).
func (h *ContactHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	page, err := h.contactService.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseListQuery(r *http.Request) (model.ContactQuery, error) {
	v := r.URL.Query()
	q := model.ContactQuery{
		Filter: model.ContactFilter{
			Status:   model.ContactStatus(v.Get("status")),
			Priority: model.Priority(v.Get("priority")),
			Source:   model.Source(v.Get("source")),
			Search:   strings.TrimSpace(v.Get("search")),
		},
		SortBy:   model.SortField(v.Get("sort")),
		SortDesc: true,
	}

	var fields []service.FieldError
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			fields = append(fields, service.FieldError{Field: "page", Message: "must be a positive integer"})
		}
		q.Page = n
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > model.MaxPageSize {
			fields = append(fields, service.FieldError{Field: "limit", Message: "must be between 1 and 100"})
		}
		q.PageSize = n
	}
	switch v.Get("order") {
	case "", "desc":
	case "asc":
		q.SortDesc = false
	default:
		fields = append(fields, service.FieldError{Field: "order", Message: "must be asc or desc"})
	}
	if len(fields) > 0 {
		return q, &service.ValidationError{Fields: fields}
	}
	return q, nil
}

// Get handles GET /api/admin/contacts/{id}.
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.contactService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// updateStatusRequest is the JSON body for PATCH /api/admin/contacts/{id}/status.
type updateStatusRequest struct {
	Status          model.ContactStatus `json:"status"`
	RepliedBy       string              `json:"replied_by"`
	ResponseMessage string              `json:"response_message"`
}

// UpdateStatus handles PATCH /api/admin/contacts/{id}/status.
func (h *ContactHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var reply *model.ReplyInput
	if req.Status == model.StatusReplied {
		reply = &model.ReplyInput{
			RepliedBy:       strings.TrimSpace(req.RepliedBy),
			ResponseMessage: strings.TrimSpace(req.ResponseMessage),
		}
	}

	c, err := h.contactService.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, reply)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/admin/contacts/{id}.
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.contactService.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/admin/contacts/stats.
func (h *ContactHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.contactService.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// decodeBody reads a size-limited JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return false
	}
	return true
}
