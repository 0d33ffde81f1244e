package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/complaintdesk/complaintdesk/infrastructure/http/middleware"
	"github.com/complaintdesk/complaintdesk/infrastructure/http/response"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/internal/domain"
	"github.com/complaintdesk/complaintdesk/internal/usecase"
)

// ComplaintService defines the lifecycle operations the handler depends on
type ComplaintService interface {
	CreateComplaint(ctx context.Context, subject domain.Subject, req usecase.CreateComplaintRequest) (*domain.Complaint, error)
	GetComplaint(ctx context.Context, subject domain.Subject, id string) (*domain.Complaint, error)
	ListComplaints(ctx context.Context, subject domain.Subject, status *domain.ComplaintStatus) (*usecase.ListComplaintsResponse, error)
	Stats(ctx context.Context, subject domain.Subject) (domain.StatusCounts, error)
	UpdateComplaint(ctx context.Context, subject domain.Subject, id string, req usecase.UpdateComplaintRequest) (*domain.Complaint, error)
}

// ComplaintHandler handles HTTP requests for complaints
type ComplaintHandler struct {
	complaints ComplaintService
	logger     logger.Logger
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(complaints ComplaintService, log logger.Logger) *ComplaintHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ComplaintHandler{
		complaints: complaints,
		logger:     log.WithFields(map[string]interface{}{"component": "complaint_handler"}),
	}
}

// RegisterRoutes registers complaint routes. Literal paths go before {id}.
func (h *ComplaintHandler) RegisterRoutes(router *mux.Router, guards RouteGuards) {
	router.Handle("/api/v1/complaints", guards.write(h.CreateComplaint)).Methods(http.MethodPost)
	router.Handle("/api/v1/complaints", guards.read(h.ListComplaints)).Methods(http.MethodGet)
	router.Handle("/api/v1/complaints/stats", guards.read(h.GetStats)).Methods(http.MethodGet)
	router.Handle("/api/v1/complaints/{id}", guards.read(h.GetComplaint)).Methods(http.MethodGet)
	router.Handle("/api/v1/complaints/{id}", guards.write(h.UpdateComplaint)).Methods(http.MethodPatch)
}

// CreateComplaint handles complaint submission
func (h *ComplaintHandler) CreateComplaint(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req usecase.CreateComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	complaint, err := h.complaints.CreateComplaint(r.Context(), subject, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, http.StatusCreated, "Complaint created successfully", complaint)
}

// GetComplaint handles retrieving a single complaint
func (h *ComplaintHandler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	complaint, err := h.complaints.GetComplaint(r.Context(), subject, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, "Complaint retrieved successfully", complaint)
}

// ListComplaints handles listing the complaints visible to the caller
func (h *ComplaintHandler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var status *domain.ComplaintStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s := domain.ComplaintStatus(raw)
		status = &s
	}

	list, err := h.complaints.ListComplaints(r.Context(), subject, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, "Complaints retrieved successfully", list)
}

// GetStats handles per-status totals for the caller's scope
func (h *ComplaintHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	counts, err := h.complaints.Stats(r.Context(), subject)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, "Complaint statistics retrieved successfully", counts)
}

// UpdateComplaint handles reviewer edits of status and response
func (h *ComplaintHandler) UpdateComplaint(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req usecase.UpdateComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	complaint, err := h.complaints.UpdateComplaint(r.Context(), subject, mux.Vars(r)["id"], req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, "Complaint updated successfully", complaint)
}

func (h *ComplaintHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := response.FromError(w, err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "Complaint request failed", err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}
}
