// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package converter drives document conversion on a remote analysis sandbox
// through its REST API: create a task from a file, poll its status, fetch
// its report, and delete it.
package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pdiddy/doc-conv-agent/internal/httputil"
	"github.com/pdiddy/doc-conv-agent/internal/tracing"
	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

var (
	// ErrUnsupportedFileType means the file's extension is not allow-listed.
	// No request is sent to the sandbox.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrConverter means the sandbox did not accept the task.
	ErrConverter = errors.New("converter error")
)

// Analyser turns a raw report into an outcome.
type Analyser interface {
	Analyse(raw []byte) types.Outcome
}

// SandboxConverter talks to the sandbox REST API.
type SandboxConverter struct {
	client     *http.Client
	baseURL    string
	pkg        string
	extensions map[string]bool
	token      string
	userAgent  string
	maxRetries int
	analyser   Analyser
}

// NewSandboxConverter creates a converter for the sandbox at cfg.URL.
// Extensions are matched case-insensitively with or without a leading dot.
func NewSandboxConverter(client *http.Client, cfg types.ConverterConfig, analyser Analyser) *SandboxConverter {
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			exts[e] = true
		}
	}
	pkg := cfg.Package
	if pkg == "" {
		pkg = types.DefaultPackage
	}
	return &SandboxConverter{
		client:     client,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		pkg:        pkg,
		extensions: exts,
		token:      cfg.APIToken,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		analyser:   analyser,
	}
}

// Supports reports whether path has an allow-listed extension.
func (c *SandboxConverter) Supports(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return c.extensions[ext]
}

// CreateTask uploads the file at path and returns the sandbox task ID.
func (c *SandboxConverter) CreateTask(ctx context.Context, path string) (id string, err error) {
	ctx, span := startSpan(ctx, "sandbox.create_task", attribute.String("path", path))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("task_id", id))
		}
		span.End()
	}()

	if !c.Supports(path) {
		return "", fmt.Errorf("%s (extension %q): %w", path, filepath.Ext(path), ErrUnsupportedFileType)
	}

	body, contentType, err := c.multipartBody(path)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/tasks/create/file", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("creating task for %s: %w", path, ctx.Err())
		}
		return "", fmt.Errorf("creating task for %s: %v: %w", path, err, ErrConverter)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("creating task for %s: sandbox returned HTTP %d: %w", path, resp.StatusCode, ErrConverter)
	}

	var created struct {
		TaskID json.Number `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("parsing create response for %s: %v: %w", path, err, ErrConverter)
	}
	if created.TaskID == "" {
		return "", fmt.Errorf("create response for %s has no task_id: %w", path, ErrConverter)
	}

	log.Info().Str("path", path).Str("task_id", created.TaskID.String()).Msg("created conversion task")
	return created.TaskID.String(), nil
}

// multipartBody builds the upload form: the file under "file" and the
// analysis package under "package".
func (c *SandboxConverter) multipartBody(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("package", c.pkg); err != nil {
		return nil, "", fmt.Errorf("building upload for %s: %w", path, err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("building upload for %s: %w", path, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("building upload for %s: %w", path, err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// viewResponse is the part of the task view the converter reads.
type viewResponse struct {
	Task struct {
		Status types.RemoteStatus `json:"status"`
		Errors []json.RawMessage  `json:"errors"`
	} `json:"task"`
}

// Status returns the local status of a task. A vanished task (404) and any
// other unsuccessful response map to StatusError. Only transport and
// decoding failures are returned as errors.
func (c *SandboxConverter) Status(ctx context.Context, taskID string) (status types.LocalStatus, err error) {
	ctx, span := startSpan(ctx, "sandbox.task_status", attribute.String("task_id", taskID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("status", string(status)))
		}
		span.End()
	}()

	req, err := c.newRequest(ctx, http.MethodGet, "/tasks/view/"+taskID, nil)
	if err != nil {
		return "", err
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		return "", fmt.Errorf("querying status of task %s: %w", taskID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		log.Warn().Str("task_id", taskID).Msg("status queried for unknown task")
		return types.StatusError, nil
	case resp.StatusCode/100 != 2:
		log.Warn().Str("task_id", taskID).Int("status", resp.StatusCode).Msg("status query failed")
		return types.StatusError, nil
	}

	var view viewResponse
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return "", fmt.Errorf("parsing status of task %s: %w", taskID, err)
	}

	if len(view.Task.Errors) > 0 {
		log.Error().Str("task_id", taskID).Int("errors", len(view.Task.Errors)).
			Str("first_error", string(view.Task.Errors[0])).Msg("sandbox reported task errors")
	}
	return MapStatus(view.Task.Status, len(view.Task.Errors)), nil
}

// MapStatus translates a sandbox status into the local vocabulary. The
// sandbox's "completed" only means analysis finished; the report is not
// assembled until "reported", so "completed" is still running locally.
// Any reported error makes the task an error regardless of status.
func MapStatus(remote types.RemoteStatus, errorCount int) types.LocalStatus {
	if errorCount > 0 {
		return types.StatusError
	}
	switch remote {
	case types.RemoteCompleted:
		return types.StatusRunning
	case types.RemoteReported:
		return types.StatusCompleted
	default:
		return types.LocalStatus(remote)
	}
}

// Result fetches the JSON report of a completed task and hands it to the
// analyser. Fetch failures yield codes distinct from the analyser's.
func (c *SandboxConverter) Result(ctx context.Context, taskID string) (out types.Outcome) {
	ctx, span := startSpan(ctx, "sandbox.task_report", attribute.String("task_id", taskID))
	defer func() {
		span.SetAttributes(attribute.String("code", out.Code))
		if !out.OK() {
			span.SetStatus(codes.Error, "code "+out.Code)
		}
		span.End()
	}()

	req, err := c.newRequest(ctx, http.MethodGet, "/tasks/report/"+taskID+"/json", nil)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("could not build report request")
		return types.Failed(types.CodeReportFetch)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("report fetch failed")
		return types.Failed(types.CodeReportFetch)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		log.Warn().Str("task_id", taskID).Msg("report requested for unknown task")
		return types.Failed(types.CodeReportNotFound)
	case resp.StatusCode/100 != 2:
		log.Warn().Str("task_id", taskID).Int("status", resp.StatusCode).Msg("report fetch failed")
		return types.Failed(types.CodeReportFetch)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("reading report failed")
		return types.Failed(types.CodeReportFetch)
	}
	return c.analyser.Analyse(raw)
}

// DeleteTask asks the sandbox to delete a task. Every failure is logged and
// otherwise ignored.
func (c *SandboxConverter) DeleteTask(ctx context.Context, taskID string) {
	ctx, span := startSpan(ctx, "sandbox.delete_task", attribute.String("task_id", taskID))
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodGet, "/tasks/delete/"+taskID, nil)
	if err != nil {
		log.Warn().Err(err).Str("task_id", taskID).Msg("could not build delete request")
		return
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		log.Warn().Err(err).Str("task_id", taskID).Msg("task deletion failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		log.Debug().Str("task_id", taskID).Msg("deleted remote task")
	case http.StatusNotFound:
		log.Warn().Str("task_id", taskID).Msg("deletion requested for unknown task")
	case http.StatusInternalServerError:
		log.Warn().Str("task_id", taskID).Msg("sandbox could not delete task")
	default:
		log.Warn().Str("task_id", taskID).Int("status", resp.StatusCode).Msg("task deletion failed")
	}
}

func (c *SandboxConverter) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	tracing.InjectHeaders(ctx, req.Header)
	return req, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("github.com/pdiddy/doc-conv-agent/internal/converter").
		Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
