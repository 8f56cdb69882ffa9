package httpserver

import (
	"time"

	"github.com/deepscience/research-graph-service/internal/domain"
)

// Run response types for JSON serialization.

type startRunResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	MaxNodes  int       `json:"max_nodes"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

type stepResponse struct {
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type runStatusResponse struct {
	RunID     string         `json:"run_id"`
	Query     string         `json:"query"`
	CVID      string         `json:"cv_id,omitempty"`
	Status    string         `json:"status"`
	MaxNodes  int            `json:"max_nodes"`
	Steps     []stepResponse `json:"steps"`
	GraphData *domain.Graph  `json:"graph_data,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type runSummaryResponse struct {
	RunID     string    `json:"run_id"`
	Query     string    `json:"query"`
	Status    string    `json:"status"`
	NodeCount int       `json:"node_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listRunsResponse struct {
	Runs          []runSummaryResponse `json:"runs"`
	NextPageToken string               `json:"next_page_token,omitempty"`
	TotalCount    int                  `json:"total_count"`
}

type uploadCVResponse struct {
	CVID       string    `json:"cv_id"`
	Filename   string    `json:"filename"`
	Concepts   []string  `json:"concepts"`
	UploadedAt time.Time `json:"uploaded_at"`
	Message    string    `json:"message"`
}

type generateEmailResponse struct {
	Content string `json:"content"`
	Message string `json:"message"`
}

// Converter functions

func domainRunToStatusResponse(r *domain.Run) runStatusResponse {
	steps := make([]stepResponse, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = stepResponse{
			Name:      string(s.Name),
			Status:    string(s.Status),
			Detail:    s.Detail,
			Timestamp: s.Timestamp,
		}
	}

	resp := runStatusResponse{
		RunID:     r.ID.String(),
		Query:     r.Query,
		Status:    string(r.Status),
		MaxNodes:  r.MaxNodes,
		Steps:     steps,
		GraphData: r.GraphData,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.CVID != nil {
		resp.CVID = r.CVID.String()
	}
	return resp
}

func domainRunToSummary(r *domain.Run) runSummaryResponse {
	resp := runSummaryResponse{
		RunID:     r.ID.String(),
		Query:     r.Query,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.GraphData != nil {
		resp.NodeCount = len(r.GraphData.Nodes)
	}
	return resp
}
