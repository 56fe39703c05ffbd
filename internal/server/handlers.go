package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/spannerworks/ratchet/internal/errors"
	"github.com/spannerworks/ratchet/internal/models"
	"github.com/spannerworks/ratchet/internal/service"
	"github.com/spannerworks/ratchet/internal/workflow"
)

// TransitionBody is the request body for POST .../transitions.
type TransitionBody struct {
	FromState string                 `json:"from_state,omitempty"`
	ToState   string                 `json:"to_state"`
	Reason    string                 `json:"reason,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Force     bool                   `json:"force,omitempty"`
}

// TransitionResponse is the success payload of a transition.
type TransitionResponse struct {
	Inspection *models.Inspection `json:"inspection"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    int      `json:"code"`
	Message string   `json:"message,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a plain error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	})
}

// writeServiceError maps a service error to its HTTP status. Structured
// errors keep their message and full reason list in the payload.
func writeServiceError(w http.ResponseWriter, err error) {
	status := errors.GetHTTPStatus(err)
	resp := ErrorResponse{
		Error: http.StatusText(status),
		Code:  status,
	}
	if serviceErr, ok := err.(*errors.Error); ok {
		resp.Message = serviceErr.Message
		resp.Reasons = serviceErr.Reasons
	} else {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}

// actorFromRequest resolves the caller identity from the auth headers.
func actorFromRequest(r *http.Request) (models.Actor, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return models.Actor{}, errors.InvalidArgs("X-User-ID header is required")
	}
	role, err := models.ParseRole(r.Header.Get("X-Role"))
	if err != nil {
		return models.Actor{}, errors.InvalidArgs("X-Role header: %v", err)
	}
	shopID, err := strconv.ParseInt(r.Header.Get("X-Shop-ID"), 10, 64)
	if err != nil || shopID <= 0 {
		return models.Actor{}, errors.InvalidArgs("X-Shop-ID header must be a positive integer")
	}
	return models.Actor{UserID: userID, Role: role, ShopID: shopID}, nil
}

// inspectionID parses the {id} path value.
func inspectionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.InvalidArgs("invalid inspection id")
	}
	return id, nil
}

func (s *Server) handleListInspections(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	filter := service.ListFilter{
		State:        r.URL.Query().Get("state"),
		TechnicianID: r.URL.Query().Get("technician"),
		Limit:        100,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	list, err := s.service.List(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := inspectionID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	detail, err := s.service.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := inspectionID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	history, err := s.service.History(r.Context(), actor, id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := inspectionID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var body TransitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var result *workflow.TransitionResult
	if body.Force {
		result, err = s.service.Force(r.Context(), workflow.ForceRequest{
			InspectionID: id,
			To:           models.WorkflowState(body.ToState),
			Actor:        actor,
			Reason:       body.Reason,
			Metadata:     body.Metadata,
		})
	} else {
		result, err = s.service.Transition(r.Context(), workflow.TransitionRequest{
			InspectionID: id,
			From:         models.WorkflowState(body.FromState),
			To:           models.WorkflowState(body.ToState),
			Actor:        actor,
			Reason:       body.Reason,
			Metadata:     body.Metadata,
		})
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TransitionResponse{
		Inspection: result.Inspection,
		Warnings:   result.Warnings,
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	windowDays := 0
	if windowStr := r.URL.Query().Get("window"); windowStr != "" {
		if n, err := strconv.Atoi(windowStr); err == nil && n > 0 {
			windowDays = n
		}
	}

	stats, err := s.service.Statistics(r.Context(), actor, windowDays)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
