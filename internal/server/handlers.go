package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type retrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type retrieveResponse struct {
	Context     string `json:"context"`
	InputTokens int    `json:"input_tokens"`
}

type migrateRequest struct {
	Code string `json:"code"`
}

type migrateResponse struct {
	MigratedCode string `json:"migrated_code"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRetrieve(w, r)
	if !ok {
		return
	}

	context, err := s.engine.Load().RetrieveFlat(r.Context(), req.Query, req.K)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retrieveResponse{
		Context:     context,
		InputTokens: approxTokens(context),
	})
}

func (s *Server) handleRetrieveBySection(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRetrieve(w, r)
	if !ok {
		return
	}

	context, err := s.engine.Load().RetrieveBySection(
		r.Context(), req.Query, s.cfg.Retrieval.KSearch, req.K, s.state)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retrieveResponse{
		Context:     context,
		InputTokens: approxTokens(context),
	})
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "POST required"})
		return
	}
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "code is required"})
		return
	}

	context, err := s.engine.Load().RetrieveBySection(
		r.Context(), req.Code, s.cfg.Retrieval.KSearch, s.cfg.Retrieval.KPick, s.state)
	if err != nil {
		s.fail(w, err)
		return
	}

	prompt := s.migratePrompt(req.Code, context)
	migrated, err := s.client.CompleteWithMaxTokens(r.Context(), prompt, 4096)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, migrateResponse{
		MigratedCode: migrated,
		InputTokens:  approxTokens(prompt),
		OutputTokens: approxTokens(migrated),
	})
}

// migratePrompt builds the single-snippet migration prompt from the
// retrieved context and the loaded workflow state.
func (s *Server) migratePrompt(code, context string) string {
	mapping, _ := json.MarshalIndent(s.state.ComponentMap, "", "  ")
	plan, _ := json.MarshalIndent(s.state.MigrationPlan, "", "  ")
	rules, _ := json.MarshalIndent(s.state.VerificationRules, "", "  ")

	return fmt.Sprintf(`You have a mapping of old Modus 1.0 component filenames to new Modus 2.0 filenames:

Mapping of V1 components to V2 components:
%s

Use this mapping exactly. Do not invent or alter component names.

Use the following migration context:
-------------------------
%s
-------------------------
Original Code:
-------------------------
%s
-------------------------
Migration Plan:
-------------------------
%s
-------------------------
Verification Rules:
-------------------------
%s

Migrate as per the mapping of V1 components to V2 components, follow the migration plan and verify the code against the verification rules.
Do not change any other logic or attributes, and do not introduce new tags.

Return only the final migrated code.`, mapping, context, code, plan, rules)
}

func decodeRetrieve(w http.ResponseWriter, r *http.Request) (retrieveRequest, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "POST required"})
		return retrieveRequest{}, false
	}
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "query is required"})
		return retrieveRequest{}, false
	}
	if req.K <= 0 {
		req.K = 5
	}
	return req, true
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// approxTokens estimates the token count of a text. Close enough for the
// request accounting the API reports.
func approxTokens(text string) int {
	return len(text) / 4
}
