// Package mcp exposes world agents as JSON-RPC tools for LLM agents. Every
// caller (session key) drives its own agent through a bridge session.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"focuscraft.ai/internal/mcp/bridge"
)

type Bridge interface {
	GetStatus(ctx context.Context, sessionKey string) (bridge.Status, error)
	GetView(ctx context.Context, sessionKey string, opts bridge.GetViewOpts) (bridge.ViewResult, error)
	GetEvents(ctx context.Context, sessionKey string, opts bridge.GetEventsOpts) (bridge.EventsResult, error)
	ListObjects(ctx context.Context, sessionKey string) ([]bridge.ObjectView, error)
	LookAt(ctx context.Context, sessionKey string, args bridge.LookArgs) (bridge.LookResult, error)
	Interact(ctx context.Context, sessionKey string, args bridge.InteractArgs) (bridge.ActionResult, error)
	SetCanInteract(ctx context.Context, sessionKey string, value bool) (bridge.ActionResult, error)
	Disconnect(ctx context.Context, sessionKey string) error
}

type Config struct {
	Bridge     Bridge
	HMACSecret string
	// AllowLegacyHMAC accepts signatures without x-nonce.
	AllowLegacyHMAC bool
}

type Server struct {
	bridge      Bridge
	hmacSecret  []byte
	allowLegacy bool
	replay      *replayGuard
	now         func() time.Time
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Bridge == nil {
		return nil, fmt.Errorf("nil bridge")
	}
	s := &Server{
		bridge:      cfg.Bridge,
		allowLegacy: cfg.AllowLegacyHMAC,
		now:         time.Now,
	}
	if strings.TrimSpace(cfg.HMACSecret) != "" {
		s.hmacSecret = []byte(cfg.HMACSecret)
		s.replay = newReplayGuard(2 * maxClockSkew)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/mcp", s.handleMCP)
	return mux
}

func (s *Server) handleMCP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad body"))
		return
	}
	_ = r.Body.Close()

	sessionKey := strings.TrimSpace(r.Header.Get(headerAgentID))
	if len(s.hmacSecret) > 0 {
		now := s.now()
		vr := verifyHMAC(r, body, s.hmacSecret, now, s.allowLegacy)
		if vr.HTTPStatus != 0 {
			rw.WriteHeader(vr.HTTPStatus)
			_, _ = rw.Write([]byte(vr.Message))
			return
		}
		if !s.replay.allow(vr.SessionKey, vr.Signature, now) {
			rw.WriteHeader(http.StatusUnauthorized)
			_, _ = rw.Write([]byte("replayed request"))
			return
		}
		sessionKey = vr.SessionKey
	} else if err := requireLoopback(r); err != nil {
		rw.WriteHeader(http.StatusForbidden)
		_, _ = rw.Write([]byte(err.Error()))
		return
	}
	if sessionKey == "" {
		sessionKey = "default"
	}

	req, err := parseRPCRequest(body)
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad jsonrpc request"))
		return
	}

	resp := s.dispatch(r.Context(), sessionKey, req)
	rw.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

func (s *Server) dispatch(ctx context.Context, sessionKey string, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return rpcOK(req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			"serverInfo": map[string]any{"name": "focuscraft"},
		})

	case "list_tools", "tools/list":
		return rpcOK(req.ID, map[string]any{"tools": toolsList()})

	case "call_tool", "tools/call":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if len(req.Params) == 0 {
			return rpcErr(req.ID, codeInvalidParams, "missing params", nil)
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return rpcErr(req.ID, codeInvalidParams, "bad params", err.Error())
		}
		if p.Name == "" {
			return rpcErr(req.ID, codeInvalidParams, "missing tool name", nil)
		}
		if !isKnownTool(p.Name) {
			return rpcErr(req.ID, codeMethodNotFound, "tool not found", map[string]any{"name": p.Name})
		}
		out, err := s.callTool(ctx, sessionKey, p.Name, p.Arguments)
		if err != nil {
			return rpcErr(req.ID, codeToolFailed, err.Error(), nil)
		}
		return rpcOK(req.ID, out)

	default:
		return rpcErr(req.ID, codeMethodNotFound, "method not found", nil)
	}
}

const (
	toolGetStatus      = "focuscraft.get_status"
	toolGetView        = "focuscraft.get_view"
	toolGetEvents      = "focuscraft.get_events"
	toolListObjects    = "focuscraft.list_objects"
	toolLookAt         = "focuscraft.look_at"
	toolInteract       = "focuscraft.interact"
	toolSetCanInteract = "focuscraft.set_can_interact"
	toolDisconnect     = "focuscraft.disconnect"
)

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}, "additionalProperties": false}
}

func toolsList() []map[string]any {
	return []map[string]any{
		{
			"name":        toolGetStatus,
			"description": "Connection status of this session's agent.",
			"inputSchema": emptySchema(),
		},
		{
			"name":        toolGetView,
			"description": "The agent's current focus, hold and progress state (optionally wait for a new tick).",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"wait_new_tick": map[string]any{"type": "boolean"},
					"timeout_ms":    map[string]any{"type": "integer"},
				},
			},
		},
		{
			"name":        toolGetEvents,
			"description": "Focus/interact events after a cursor (BEGIN_FOCUS, END_FOCUS, END_INTERACT, INTERACT).",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"since_cursor": map[string]any{"type": "integer"},
					"limit":        map[string]any{"type": "integer"},
					"wait_ms":      map[string]any{"type": "integer"},
				},
			},
		},
		{
			"name":        toolListObjects,
			"description": "Interactable objects with their settings, distance and whether the agent focuses them.",
			"inputSchema": emptySchema(),
		},
		{
			"name":        toolLookAt,
			"description": "Aim the agent at an object (object_id) or at pitch/yaw in degrees.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"object_id": map[string]any{"type": "string"},
					"pitch":     map[string]any{"type": "number"},
					"yaw":       map[string]any{"type": "number"},
				},
			},
		},
		{
			"name":        toolInteract,
			"description": "Press (begin) or release (end) interact on the focused object.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{"type": "string", "enum": []string{"begin", "end"}},
				},
				"required": []string{"action"},
			},
		},
		{
			"name":        toolSetCanInteract,
			"description": "Enable or disable interaction for the agent.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value": map[string]any{"type": "boolean"},
				},
				"required": []string{"value"},
			},
		},
		{
			"name":        toolDisconnect,
			"description": "Disconnect the agent; the next tool call reconnects it.",
			"inputSchema": emptySchema(),
		},
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("bad arguments: %w", err)
	}
	return nil
}

func (s *Server) callTool(ctx context.Context, sessionKey, name string, args json.RawMessage) (any, error) {
	switch name {
	case toolGetStatus:
		return s.bridge.GetStatus(ctx, sessionKey)

	case toolGetView:
		var o bridge.GetViewOpts
		if err := decodeArgs(args, &o); err != nil {
			return nil, err
		}
		return s.bridge.GetView(ctx, sessionKey, o)

	case toolGetEvents:
		var o bridge.GetEventsOpts
		if err := decodeArgs(args, &o); err != nil {
			return nil, err
		}
		return s.bridge.GetEvents(ctx, sessionKey, o)

	case toolListObjects:
		objs, err := s.bridge.ListObjects(ctx, sessionKey)
		if err != nil {
			return nil, err
		}
		return map[string]any{"objects": objs}, nil

	case toolLookAt:
		var a bridge.LookArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return s.bridge.LookAt(ctx, sessionKey, a)

	case toolInteract:
		var a bridge.InteractArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return s.bridge.Interact(ctx, sessionKey, a)

	case toolSetCanInteract:
		var p struct {
			Value *bool `json:"value"`
		}
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		if p.Value == nil {
			return nil, fmt.Errorf("missing value")
		}
		return s.bridge.SetCanInteract(ctx, sessionKey, *p.Value)

	case toolDisconnect:
		if err := s.bridge.Disconnect(ctx, sessionKey); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func isKnownTool(name string) bool {
	switch name {
	case toolGetStatus, toolGetView, toolGetEvents, toolListObjects,
		toolLookAt, toolInteract, toolSetCanInteract, toolDisconnect:
		return true
	default:
		return false
	}
}
