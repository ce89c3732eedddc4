package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"focuscraft.ai/internal/mcp"
	"focuscraft.ai/internal/mcp/bridge"
)

type gatewayConfig struct {
	Listen      string
	WorldWSURL  string
	HMACSecret  string
	MaxSessions int
	EventBuffer int

	RequireHMAC     bool
	AllowLegacyHMAC bool
}

// AuthMode is what the startup log reports.
func (c gatewayConfig) AuthMode() string {
	if c.HMACSecret == "" {
		return "loopback-only"
	}
	if c.AllowLegacyHMAC {
		return "hmac+legacy"
	}
	return "hmac"
}

// loadConfig merges flags with FC_MCP_* variables. DEPLOY_ENV staging and
// production default to requiring a nonce-signed HMAC.
func loadConfig(args []string, getenv func(string) string) (gatewayConfig, error) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	var c gatewayConfig
	fs.StringVar(&c.Listen, "listen", "127.0.0.1:8090", "http listen address")
	fs.StringVar(&c.WorldWSURL, "world-ws-url", "ws://127.0.0.1:8080/v1/ws", "focuscraft server ws url")
	fs.StringVar(&c.HMACSecret, "hmac-secret", "", "hmac secret (or set FC_MCP_HMAC_SECRET)")
	fs.IntVar(&c.MaxSessions, "max-sessions", 256, "max concurrent sessions (one world agent each)")
	fs.IntVar(&c.EventBuffer, "event-buffer", 256, "events kept per session for get_events")
	if err := fs.Parse(args); err != nil {
		return c, err
	}

	c.HMACSecret = strings.TrimSpace(c.HMACSecret)
	if c.HMACSecret == "" {
		c.HMACSecret = strings.TrimSpace(getenv("FC_MCP_HMAC_SECRET"))
	}
	strict := isStrictDeployEnv(getenv("DEPLOY_ENV"))
	c.RequireHMAC = envBool(getenv, "FC_MCP_REQUIRE_HMAC", strict)
	c.AllowLegacyHMAC = envBool(getenv, "FC_MCP_HMAC_ALLOW_LEGACY", !strict)

	if c.RequireHMAC && c.HMACSecret == "" {
		return c, errors.New("hmac secret required (set -hmac-secret or FC_MCP_HMAC_SECRET)")
	}
	if c.HMACSecret == "" && !isLoopbackListenAddress(c.Listen) {
		return c, fmt.Errorf("refusing non-loopback bind %q without an hmac secret", c.Listen)
	}
	return c, nil
}

func main() {
	logger := log.New(os.Stdout, "[mcp] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Fatalf("config: %v", err)
	}
	logger.Printf("auth=%s require_hmac=%t", cfg.AuthMode(), cfg.RequireHMAC)

	br, err := bridge.NewManager(bridge.Config{
		WorldWSURL:  cfg.WorldWSURL,
		MaxSessions: cfg.MaxSessions,
		EventBuffer: cfg.EventBuffer,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatalf("bridge: %v", err)
	}
	defer br.Close()

	srv, err := mcp.NewServer(mcp.Config{
		Bridge:          br,
		HMACSecret:      cfg.HMACSecret,
		AllowLegacyHMAC: cfg.AllowLegacyHMAC,
	})
	if err != nil {
		logger.Fatalf("mcp: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on http://%s world=%s sessions<=%d", cfg.Listen, cfg.WorldWSURL, cfg.MaxSessions)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("listen: %v", err)
	}
	logger.Printf("stopped (sessions=%d)", br.Sessions())
}

func isStrictDeployEnv(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "staging", "production":
		return true
	}
	return false
}

func envBool(getenv func(string) string, key string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(getenv(key)))
	if err != nil {
		return def
	}
	return b
}

func isLoopbackListenAddress(addr string) bool {
	host := strings.TrimSpace(addr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
