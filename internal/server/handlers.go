package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jonathan/testpilot/internal/export"
	"github.com/jonathan/testpilot/internal/pipeline"
	"github.com/jonathan/testpilot/internal/types"
	"github.com/jonathan/testpilot/internal/validation"
)

// maxUploadBytes bounds the multipart form held in memory.
const maxUploadBytes = 10 << 20

// handleUpload accepts a multipart requirements CSV and registers it as
// the next version of the named document.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}

	req := types.UploadRequest{
		Name:       r.FormValue("name"),
		UploadedBy: r.FormValue("uploaded_by"),
		Notes:      r.FormValue("notes"),
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "document name is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	result, err := s.service.Upload(r.Context(), req.Name, header.Filename, data)
	if err != nil {
		var vErr *pipeline.ValidationFailedError
		if errors.As(err, &vErr) {
			s.validationFailedResponse(w, vErr)
			return
		}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusCreated, result)
}

// validationFailedResponse details why an upload was rejected, naming
// every missing column when that is the cause.
func (s *Server) validationFailedResponse(w http.ResponseWriter, vErr *pipeline.ValidationFailedError) {
	body := map[string]any{"error": vErr.Error()}
	var colErr *validation.MissingColumnsError
	if errors.As(vErr, &colErr) {
		body["missing_columns"] = colErr.Columns
	}
	if vErr.Result != nil && len(vErr.Result.Errors) > 0 {
		body["row_errors"] = vErr.Result.Errors
	}
	s.jsonResponse(w, http.StatusBadRequest, body)
}

// handleGenerateCases synthesizes (or re-synthesizes) a job's case list.
func (s *Server) handleGenerateCases(w http.ResponseWriter, r *http.Request) {
	req := types.GenerateCasesRequest{JobID: r.PathValue("id")}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "job id is required")
		return
	}

	list, err := s.service.GenerateCases(r.Context(), req.JobID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"job_id":     list.JobID,
		"count":      len(list.TestCases),
		"test_cases": list.TestCases,
	})
}

// handleGenerateScripts renders a job's cases into pytest files.
func (s *Server) handleGenerateScripts(w http.ResponseWriter, r *http.Request) {
	req := types.GenerateScriptsRequest{JobID: r.PathValue("id")}
	if r.Body != nil {
		// Body is optional; ignore decode failures on empty bodies.
		_ = json.NewDecoder(r.Body).Decode(&req)
		req.JobID = r.PathValue("id")
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "job id is required")
		return
	}

	rendered, err := s.service.GenerateScripts(r.Context(), req.JobID, req.Actor)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	files := make([]string, 0, len(rendered))
	for _, script := range rendered {
		files = append(files, script.Filename)
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"job_id": req.JobID,
		"count":  len(files),
		"files":  files,
	})
}

// handleExecute triggers a synchronous run of a job's scripts.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req := types.ExecuteRequest{JobID: r.PathValue("id")}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
		req.JobID = r.PathValue("id")
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "job id is required")
		return
	}

	run, err := s.service.Execute(r.Context(), &req)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"run_id": run.ID,
		"status": run.Status,
		"totals": run.Totals,
	})
}

// handleListDocuments lists the known logical documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.Store().ListDocuments(r.Context())
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

// handleListVersions lists a document's jobs in ascending version order.
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.service.ListVersions(r.Context(), r.PathValue("name"))
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"versions": versions, "count": len(versions)})
}

// handleGetJob returns one job record.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleGetCases returns a job's generated case list.
func (s *Server) handleGetCases(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.GetCaseList(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, list)
}

// handleListRuns returns run summaries, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns(r.Context())
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleGetRun returns one run record including per-case results.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleGetReport returns the persisted summary of a run.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.service.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, rep)
}

// handleGetArtifact streams one file from a run's artifact directory. The
// name must resolve inside that directory; traversal attempts 404.
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	path, err := s.service.Store().ArtifactPath(r.PathValue("id"), r.PathValue("name"))
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, "artifact not found")
		return
	}
	http.ServeFile(w, r, path)
}

// handleExportResults streams a run's results as a CSV attachment.
func (s *Server) handleExportResults(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	data, err := export.ResultsCSV(run)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "results_"+run.ID+".csv"))
	_, _ = w.Write(data)
}

// handleExportScripts streams a job's rendered scripts as a zip
// attachment.
func (s *Server) handleExportScripts(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	data, err := export.ScriptsZip(r.Context(), s.service.Store(), jobID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "scripts_"+jobID+".zip"))
	_, _ = w.Write(data)
}
