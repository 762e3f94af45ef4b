package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-stream-extract/internal/model"
	"go-stream-extract/internal/pipeline"
	"go-stream-extract/internal/source"
	"go-stream-extract/internal/store"
	"go-stream-extract/pkg/utils"
)

var outputs = utils.NewOutputManager("outputs")

// CreateRun starts a new extraction run
// @Summary Create a new run
// @Description Validate the supplied extraction config and start a sync run in the background
// @Tags runs
// @Accept json
// @Produce json
// @Param config body model.TapConfig true "Extraction configuration"
// @Success 200 {object} map[string]interface{} "Run accepted"
// @Failure 400 {object} map[string]interface{} "Invalid configuration"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func CreateRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	cfg, err := model.DecodeTapConfig(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	if err := store.SaveRun(runID, cfg); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), utils.ParseDuration(cfg.Concurrency.RunTimeout))
	go func() {
		defer cancel()
		if err := executeRun(ctx, runID, cfg); err != nil {
			store.SaveRunError(runID, "", err)
		}
	}()

	resp := map[string]interface{}{
		"message":   "Run accepted",
		"runID":     runID,
		"status":    "pending",
		"createdAt": time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// executeRun wires a background run: messages go to a per-run output file,
// bookmarks live in the shared database so later runs resume incrementally.
func executeRun(ctx context.Context, runID string, cfg *model.TapConfig) error {
	outPath, err := outputs.GetOutputFilePath(runID, "messages.jsonl")
	if err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	registry, err := source.BuildRegistry(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	summary, runErr := pipeline.Run(ctx, runID, cfg, pipeline.Deps{
		Registry: registry,
		Emitter:  pipeline.NewEmitter(f),
		State:    pipeline.DBState{},
	})
	if summary != nil {
		summary.Print()
	}

	if size, err := outputs.GetFileSize(outPath); err == nil {
		store.SaveOutputFile(runID, "messages.jsonl", outPath, size)
	}
	return runErr
}

// ListRuns retrieves all runs
// @Summary List all runs
// @Description Get every recorded run with its current status
// @Tags runs
// @Produce json
// @Success 200 {array} map[string]interface{} "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// GetRun retrieves a specific run
// @Summary Get run
// @Description Retrieve status, config and summary of one run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "")
	if !ok {
		return
	}
	run, err := store.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// GetRunErrors retrieves errors for a run
// @Summary Get run errors
// @Description Retrieve all errors recorded during a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/errors")
	if !ok {
		return
	}
	errs, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": runID,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetRunLogs retrieves log lines for a run
// @Summary Get run logs
// @Description Retrieve log lines recorded during a run, newest first
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Param limit query int false "Maximum lines to return" default(100)
// @Success 200 {object} map[string]interface{} "Run logs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/logs [get]
func GetRunLogs(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/logs")
	if !ok {
		return
	}
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := store.GetRunLogs(runID, limit)
	if err != nil {
		http.Error(w, "Failed to retrieve logs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": runID,
		"logs":   logs,
		"count":  len(logs),
		"limit":  limit,
	})
}

// GetRunProgress retrieves per-stream progress for a run
// @Summary Get run progress
// @Description Retrieve per-stream state and record counts for a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Stream progress"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/progress [get]
func GetRunProgress(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/progress")
	if !ok {
		return
	}
	progress, err := store.GetStreamProgress(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve progress", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id":   runID,
		"progress": progress,
		"count":    len(progress),
	})
}

// GetState retrieves all persisted bookmarks
// @Summary Get persisted state
// @Description Retrieve the bookmark of every stream that has ever checkpointed
// @Tags state
// @Produce json
// @Success 200 {object} map[string]interface{} "Bookmarks by stream"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /state [get]
func GetState(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := store.AllBookmarks()
	if err != nil {
		http.Error(w, "Failed to retrieve state", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookmarks": bookmarks,
	})
}

// GetRunFiles retrieves the output files recorded for a run
// @Summary Get run files
// @Description List the output files a run produced
// @Tags files
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Output files"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/files [get]
func GetRunFiles(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/files")
	if !ok {
		return
	}
	files, err := store.GetOutputFiles(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve files", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": runID,
		"files":  files,
		"count":  len(files),
	})
}

// DownloadFile serves a run's output file for download
// @Summary Download file
// @Description Download one output file of a run
// @Tags files
// @Produce application/octet-stream
// @Param runID path string true "Run ID"
// @Param filename path string true "File name"
// @Success 200 {file} file "File download"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /download/{runID}/{filename} [get]
func DownloadFile(w http.ResponseWriter, r *http.Request) {
	// URL format: /api/v1/download/{runID}/{filename}
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 5 {
		http.Error(w, "Invalid URL format", http.StatusBadRequest)
		return
	}
	runID := pathParts[3]
	fileName := pathParts[4]
	if runID != filepath.Base(runID) || runID == "." || runID == ".." {
		http.Error(w, "Invalid run ID", http.StatusBadRequest)
		return
	}

	filePath, err := outputs.GetOutputFilePath(runID, fileName)
	if err != nil {
		http.Error(w, "Failed to resolve file path", http.StatusInternalServerError)
		return
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, filePath)
}

// runIDFromPath extracts the run ID between "/api/v1/runs/" and the given
// suffix, writing the error response itself when the path is malformed.
func runIDFromPath(w http.ResponseWriter, r *http.Request, suffix string) (string, bool) {
	path := r.URL.Path
	prefix := "/api/v1/runs/"
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return "", false
	}
	runID := path[len(prefix) : len(path)-len(suffix)]
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return "", false
	}
	return runID, true
}
