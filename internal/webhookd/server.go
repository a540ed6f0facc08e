package webhookd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/fox-gonic/fox"
	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/model"
)

// maxBodySize caps vendor callback bodies. Real callbacks are a few KB;
// anything larger is junk.
const maxBodySize = 1 << 20

// Server is the edge webhook daemon. It terminates vendor callbacks,
// authenticates them per source, and forwards the raw body to the internal
// alarm API unchanged.
type Server struct {
	cfg    *Config
	client *http.Client
}

func NewServer(cfg *Config) *Server {
	return &Server{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.UpstreamTimeout()},
	}
}

// UseApi registers the callback routes.
func (s *Server) UseApi(router *fox.Engine) error {
	router.POST("/hooks/:source", s.handleHook)
	router.GET("/-/healthy", func(c *fox.Context) {
		c.JSON(http.StatusOK, map[string]any{"ok": true})
	})
	return nil
}

func (s *Server) handleHook(c *fox.Context) {
	source := c.Param("source")
	if !validSource(source) {
		c.JSON(http.StatusNotFound, map[string]any{"ok": false, "error": "unknown source"})
		return
	}
	if !s.authorized(source, c.Request) {
		log.Warn().Str("source", source).Str("remote", c.Request.RemoteAddr).Msg("unauthorized callback")
		c.JSON(http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "unreadable body"})
		return
	}

	status, resp, err := s.forward(c.Request.Context(), source, body)
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("forward to alarm api failed")
		c.JSON(http.StatusBadGateway, map[string]any{"ok": false, "error": "upstream unavailable"})
		return
	}
	c.Writer.Header().Set("Content-Type", "application/json")
	c.Writer.WriteHeader(status)
	c.Writer.Write(resp)
}

// authorized checks the per-source token, accepted either as a bearer header
// or a token query parameter since some vendor consoles only support URLs.
func (s *Server) authorized(source string, r *http.Request) bool {
	token := s.cfg.Auth.Tokens[source]
	if token == "" {
		return false
	}
	if r.Header.Get("Authorization") == "Bearer "+token {
		return true
	}
	return r.URL.Query().Get("token") == token
}

func (s *Server) forward(ctx context.Context, source string, body []byte) (int, []byte, error) {
	url := s.cfg.Upstream.URL + "/v1/alarms/" + source
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, fmt.Errorf("read upstream response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func validSource(source string) bool {
	switch model.DataSource(source) {
	case model.SourceAliyun, model.SourceVolcengine, model.SourceZabbix:
		return true
	}
	return false
}
