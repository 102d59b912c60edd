package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/cache"
	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// uploadField is the multipart field of a posted variant list.
const uploadField = "variants"

// StillProcessingMessage answers a batch whose owner has not finished.
const StillProcessingMessage = "Processing is not finished yet, please check the status of this unique id later."

// maxUploadBytes bounds posted variant lists.
const maxUploadBytes = 8 << 20

func (s *Server) handleRankLit(c *gin.Context) {
	var p rankLitParams
	params, ok := s.bind(c, &p)
	if !ok {
		return
	}
	settings, ok := s.settings(c, params)
	if !ok {
		return
	}
	s.logQuery(c, config.ServiceRankLit, params)

	resp, err := s.svc.RankLit(c.Request.Context(), settings, batch.RequestFromParams(params))
	s.respond(c, "", resp, err)
}

func (s *Server) handleRankVar(c *gin.Context) {
	var p rankVarParams
	params, ok := s.bind(c, &p)
	if !ok {
		return
	}
	if ok := s.saveUpload(c, params); !ok {
		return
	}
	if params.Get("genvars") == "" && params.Get("file") == "" {
		s.badRequest(c, "parameter genvars or file is required")
		return
	}
	settings, ok := s.settings(c, params)
	if !ok {
		return
	}
	s.logQuery(c, config.ServiceRankVar, params)

	// A batch keeps running when the client goes away; its result is
	// cached and reachable through its unique id.
	req := batch.RequestFromParams(params)
	resp, err := s.svc.RankVar(context.WithoutCancel(c.Request.Context()), settings, req)
	s.respond(c, req.UniqueID, resp, err)
}

func (s *Server) handleFetchDoc(c *gin.Context) {
	var p fetchParams
	params, ok := s.bind(c, &p)
	if !ok {
		return
	}
	settings, ok := s.settings(c, params)
	if !ok {
		return
	}
	s.logQuery(c, config.ServiceFetchDoc, params)

	resp, err := s.svc.FetchDoc(c.Request.Context(), settings, batch.RequestFromParams(params))
	s.respond(c, "", resp, err)
}

// statusBody mirrors the historical status answer; Output is null when
// the unique id is unknown.
type statusBody struct {
	Output *string `json:"output"`
}

func (s *Server) handleStatus(c *gin.Context) {
	var p statusParams
	if _, ok := s.bind(c, &p); !ok {
		return
	}
	settings := s.cfg.ForRequest(config.Overrides{})

	msg, err := s.svc.Status(c.Request.Context(), settings, p.UniqueID)
	if err != nil {
		s.internalError(c, err)
		return
	}
	body := statusBody{}
	if msg != "" {
		body.Output = &msg
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStats(c *gin.Context) {
	stats := s.metrics.Stats()
	if stats == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	snap := stats.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"stats":          snap,
		"cache_hit_rate": snap.CacheHitRate(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bind validates the request parameters into dst and returns the merged
// query and form values.
func (s *Server) bind(c *gin.Context, dst any) (url.Values, bool) {
	if err := c.ShouldBindWith(dst, binding.Form); err != nil {
		s.badRequest(c, describeBindError(err))
		return nil, false
	}
	params := url.Values{}
	for k, v := range c.Request.Form {
		params[k] = v
	}
	return params, true
}

// settings builds the request settings from the parameter overrides.
func (s *Server) settings(c *gin.Context, params url.Values) (config.Settings, bool) {
	overrides, err := config.ParseOverrides(params.Get)
	if err != nil {
		s.badRequest(c, err.Error())
		return config.Settings{}, false
	}
	settings := s.cfg.ForRequest(overrides)
	if err := settings.Validate(); err != nil {
		s.badRequest(c, err.Error())
		return config.Settings{}, false
	}
	return settings, true
}

// saveUpload stores a posted variant list under the API files directory
// and points the file parameter at it.
func (s *Server) saveUpload(c *gin.Context, params url.Values) bool {
	if c.Request.Method != http.MethodPost || c.Request.MultipartForm == nil {
		return true
	}
	header, err := c.FormFile(uploadField)
	if errors.Is(err, http.ErrMissingFile) {
		return true
	}
	if err != nil {
		s.badRequest(c, err.Error())
		return false
	}
	if header.Size > maxUploadBytes {
		s.badRequest(c, fmt.Sprintf("variant list exceeds %d bytes", maxUploadBytes))
		return false
	}

	name := uuid.NewString()
	dir := s.cfg.Paths.APIFilesDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.internalError(c, err)
		return false
	}
	if err := c.SaveUploadedFile(header, filepath.Join(dir, name+".txt")); err != nil {
		s.internalError(c, err)
		return false
	}
	params.Set("file", name)
	return true
}

func (s *Server) logQuery(c *gin.Context, service string, params url.Values) {
	if s.queries == nil || params.Get("log") == "false" {
		return
	}
	ip := params.Get("ip")
	if ip == "" {
		ip = c.ClientIP()
	}
	if err := s.queries.Append(service, ip, c.Request.URL.String()); err != nil {
		slog.Warn("query_log_failed", slog.String("service", service), slog.String("error", err.Error()))
	}
}

// respond writes a service response. ErrStillProcessing becomes 202.
func (s *Server) respond(c *gin.Context, uniqueID string, resp *batch.Response, err error) {
	switch {
	case errors.Is(err, cache.ErrStillProcessing):
		c.JSON(http.StatusAccepted, gin.H{
			"unique_id": uniqueID,
			"output":    StillProcessingMessage,
		})
	case err != nil:
		s.internalError(c, err)
	default:
		c.Data(resp.Status, contentTypeJSON, resp.Body)
	}
}

func (s *Server) badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, verrors.Envelope{
		Timestamp: s.now().Format(verrors.TimestampLayout),
		Status:    http.StatusBadRequest,
		Error:     http.StatusText(http.StatusBadRequest),
		Message:   message,
	})
}

func (s *Server) internalError(c *gin.Context, err error) {
	slog.Error("api_request_failed",
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()))
	rep := verrors.Report{Level: verrors.LevelFatal, Service: "api", Description: "Request failed", Details: err.Error()}
	c.AbortWithStatusJSON(http.StatusInternalServerError, verrors.NewEnvelope(rep, s.now()))
}
