package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/outreach"
	"github.com/deepscience/research-graph-service/internal/repository"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// startRunRequest is the JSON request body for starting a discovery run.
type startRunRequest struct {
	Query    string `json:"query" validate:"required,min=3,max=10000"`
	CVID     string `json:"cv_id,omitempty" validate:"omitempty,uuid"`
	MaxNodes int    `json:"max_nodes,omitempty" validate:"omitempty,gte=2,lte=100"`
}

// uploadCVRequest is the JSON request body for uploading a CV.
type uploadCVRequest struct {
	Filename string `json:"filename,omitempty" validate:"omitempty,max=255"`
	Text     string `json:"text" validate:"required,min=10"`
	UserName string `json:"user_name,omitempty" validate:"omitempty,max=255"`
}

// generateEmailRequest is the JSON request body for drafting an outreach email.
type generateEmailRequest struct {
	EmailType        string `json:"email_type" validate:"required,oneof=colab reach_out"`
	CVID             string `json:"cv_id" validate:"required,uuid"`
	ProfessorName    string `json:"professor_name" validate:"required,max=255"`
	ProfessorContext string `json:"professor_context,omitempty" validate:"omitempty,max=10000"`
	RecipientName    string `json:"recipient_name,omitempty" validate:"omitempty,max=255"`
	StudentName      string `json:"student_name,omitempty" validate:"omitempty,max=255"`
}

// startRun handles POST /runs. It registers the run, spawns the pipeline
// goroutine, and returns the run id immediately; clients poll GET /runs/{id}.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if len(req.Query) < 3 {
		writeError(w, http.StatusBadRequest, "query must be at least 3 characters")
		return
	}

	var cvID *uuid.UUID
	if req.CVID != "" {
		id, err := uuid.Parse(req.CVID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cv_id must be a valid UUID")
			return
		}
		cvID = &id
	}

	maxNodes := req.MaxNodes
	if maxNodes == 0 {
		maxNodes = s.cfg.DefaultMaxNodes
	}
	if s.cfg.MaxNodesLimit > 0 && maxNodes > s.cfg.MaxNodesLimit {
		maxNodes = s.cfg.MaxNodesLimit
	}

	run := domain.NewRun(req.Query, cvID, maxNodes)
	s.store.Put(run)

	go func(runID uuid.UUID) {
		ctx := s.baseCtx
		cancel := context.CancelFunc(func() {})
		if s.cfg.RunTimeout > 0 {
			ctx, cancel = context.WithTimeout(s.baseCtx, s.cfg.RunTimeout)
		}
		defer cancel()
		s.executor.Execute(ctx, runID)
	}(run.ID)

	writeJSON(w, http.StatusAccepted, startRunResponse{
		RunID:     run.ID.String(),
		Status:    string(run.Status),
		MaxNodes:  run.MaxNodes,
		CreatedAt: run.CreatedAt,
		Message:   "discovery run started",
	})
}

// getRun handles GET /runs/{runID}. In-flight runs are served from the state
// store; finished runs that have been evicted fall back to durable storage.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"), "run_id")
	if !ok {
		return
	}

	if run, found := s.store.Get(runID); found {
		writeJSON(w, http.StatusOK, domainRunToStatusResponse(run))
		return
	}

	if s.runRepo != nil {
		run, err := s.runRepo.GetByID(r.Context(), runID)
		if err == nil {
			writeJSON(w, http.StatusOK, domainRunToStatusResponse(run))
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			writeDomainError(w, err)
			return
		}
	}

	writeError(w, http.StatusNotFound, "run not found")
}

// listRuns handles GET /runs. It returns persisted runs, newest first.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runRepo == nil {
		writeError(w, http.StatusServiceUnavailable, "run storage not configured")
		return
	}

	limit, offset := parsePaginationParams(r)

	filter := repository.RunFilter{
		Limit:  limit,
		Offset: offset,
	}
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		filter.Status = []domain.RunStatus{domain.RunStatus(statusParam)}
	}

	runs, totalCount, err := s.runRepo.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	summaries := make([]runSummaryResponse, len(runs))
	for i, run := range runs {
		summaries[i] = domainRunToSummary(run)
	}

	writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:          summaries,
		NextPageToken: encodePageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// uploadCV handles POST /cvs. The text is run through concept extraction and
// registered in the CV store; the returned cv_id personalizes later runs.
func (s *Server) uploadCV(w http.ResponseWriter, r *http.Request) {
	var req uploadCVRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	concepts := []string{}
	if s.extractor != nil {
		extracted, err := s.extractor.ExtractConcepts(r.Context(), req.Text)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		concepts = extracted
	}

	filename := req.Filename
	if filename == "" {
		filename = "cv.txt"
	}

	doc := s.cvStore.Add(filename, req.Text, concepts)

	// Persist the transcribed CV alongside the user record. Failure here must
	// not fail the upload; the in-memory document is already usable.
	if s.userRepo != nil && req.UserName != "" {
		user := domain.NewUser(req.UserName, req.Text)
		if err := s.userRepo.Create(r.Context(), user); err != nil {
			s.logger.Warn().Err(err).Str("cv_id", doc.ID.String()).Msg("could not persist user CV")
		}
	}

	writeJSON(w, http.StatusCreated, uploadCVResponse{
		CVID:       doc.ID.String(),
		Filename:   doc.Filename,
		Concepts:   doc.Concepts,
		UploadedAt: doc.UploadedAt,
		Message:    "CV processed",
	})
}

// generateEmail handles POST /emails. It drafts an outreach email to a
// professor using the CV's extracted concepts for personalization.
func (s *Server) generateEmail(w http.ResponseWriter, r *http.Request) {
	if s.emails == nil {
		writeError(w, http.StatusServiceUnavailable, "email generation not configured")
		return
	}

	var req generateEmailRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cvID, err := uuid.Parse(req.CVID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cv_id must be a valid UUID")
		return
	}

	doc, found := s.cvStore.Get(cvID)
	if !found {
		writeError(w, http.StatusNotFound, "CV not found")
		return
	}
	cvText, _ := s.cvStore.TextPreview(cvID)

	content, err := s.emails.Generate(r.Context(), outreach.Request{
		Type:             outreach.EmailType(req.EmailType),
		ProfessorName:    req.ProfessorName,
		ProfessorContext: req.ProfessorContext,
		RecipientName:    req.RecipientName,
		StudentName:      req.StudentName,
		CVText:           cvText,
		CVConcepts:       doc.Concepts,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateEmailResponse{
		Content: content,
		Message: "email generated",
	})
}

// decodeAndValidate reads the request body into v and applies struct
// validation, writing a 400 response on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("%s failed validation on %q", jsonFieldName(v, fe), fe.Tag()))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}

	return true
}

// jsonFieldName maps a validator field error back to the JSON field name.
func jsonFieldName(v interface{}, fe validator.FieldError) string {
	// Struct field names in this package mirror their JSON names closely
	// enough for error messages; lower snake case the Go name.
	name := fe.Field()
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// writeDomainError maps domain errors to appropriate HTTP status codes and
// writes a JSON error response. Internal error details are not leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, context.Canceled):
		writeError(w, http.StatusConflict, "operation cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if
// invalid. The parse error details are not echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query
// parameters, applying default and maximum bounds.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodePageToken encodes the next offset as a base64 page token. Returns an
// empty string when there are no more results.
func encodePageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
