package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/world"
	"focuscraft.ai/internal/transport/observer"
	"focuscraft.ai/internal/transport/ws"
)

type serverRuntime struct {
	WorldID  string
	World    *world.World
	WS       *ws.Server
	Observer *observer.Server
	Index    runtimeIndex
	Mirror   *r2MirrorRuntime
}

func buildMux(rt serverRuntime, logger *log.Logger, enableAdminHTTP, enablePprofHTTP bool) *http.ServeMux {
	w := rt.World
	worldID := rt.WorldID

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP focuscraft_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_world_tick gauge\n")
		fmt.Fprintf(rw, "focuscraft_world_tick{world=%q} %d\n", worldID, tick)

		fmt.Fprintf(rw, "# HELP focuscraft_world_agents Current number of agents in the world.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_world_agents gauge\n")
		fmt.Fprintf(rw, "focuscraft_world_agents{world=%q} %d\n", worldID, m.Agents)

		fmt.Fprintf(rw, "# HELP focuscraft_world_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_world_clients gauge\n")
		fmt.Fprintf(rw, "focuscraft_world_clients{world=%q} %d\n", worldID, m.Clients)

		fmt.Fprintf(rw, "# HELP focuscraft_world_objects Interactable objects, by state.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_world_objects gauge\n")
		fmt.Fprintf(rw, "focuscraft_world_objects{world=%q,state=%q} %d\n", worldID, "active", m.ActiveObjects)
		fmt.Fprintf(rw, "focuscraft_world_objects{world=%q,state=%q} %d\n", worldID, "inactive", m.Objects-m.ActiveObjects)

		fmt.Fprintf(rw, "# HELP focuscraft_world_focusing Agents currently focused on an object.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_world_focusing gauge\n")
		fmt.Fprintf(rw, "focuscraft_world_focusing{world=%q} %d\n", worldID, m.Focusing)

		fmt.Fprintf(rw, "# HELP focuscraft_world_interacting Agents currently holding an interaction.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_world_interacting gauge\n")
		fmt.Fprintf(rw, "focuscraft_world_interacting{world=%q} %d\n", worldID, m.Interacting)

		fmt.Fprintf(rw, "# HELP focuscraft_world_events_total Interaction events emitted.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_world_events_total counter\n")
		fmt.Fprintf(rw, "focuscraft_world_events_total{world=%q} %d\n", worldID, m.EventsTotal)

		fmt.Fprintf(rw, "# HELP focuscraft_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "focuscraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "focuscraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "focuscraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "leave", m.QueueDepths.Leave)
		fmt.Fprintf(rw, "focuscraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "outbound", m.QueueDepths.Outbound)

		fmt.Fprintf(rw, "# HELP focuscraft_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_world_step_ms gauge\n")
		fmt.Fprintf(rw, "focuscraft_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

		if rt.WS != nil {
			s := rt.WS.Stats()
			fmt.Fprintf(rw, "# HELP focuscraft_ws_sessions Open websocket sessions.\n")
			fmt.Fprintf(rw, "# TYPE focuscraft_ws_sessions gauge\n")
			fmt.Fprintf(rw, "focuscraft_ws_sessions{world=%q} %d\n", worldID, s.Sessions)
			fmt.Fprintf(rw, "# HELP focuscraft_ws_rejected_total ACT messages rejected before reaching the world.\n")
			fmt.Fprintf(rw, "# TYPE focuscraft_ws_rejected_total counter\n")
			fmt.Fprintf(rw, "focuscraft_ws_rejected_total{world=%q} %d\n", worldID, s.RejectedTotal)
			fmt.Fprintf(rw, "focuscraft_ws_rejected_total{world=%q,reason=%q} %d\n", worldID, "rate_limit", s.RateLimited)
		}

		writeIndexMetrics(rw, worldID, rt.Index)
		writeR2MirrorMetrics(rw, rt.Mirror)
	})

	if enableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string                `json:"world_id"`
				Tick    uint64                `json:"tick"`
				Metrics world.WorldMetrics    `json:"metrics"`
				Agents  []world.AgentView     `json:"agents"`
				Objects []protocol.ObjectInfo `json:"objects"`
			}{
				WorldID: worldID,
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
				Agents:  w.Views(),
				Objects: w.Objects(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/objects/", func(rw http.ResponseWriter, r *http.Request) {
			// Pattern: /admin/v1/objects/{id}/activate|deactivate
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			path := strings.TrimPrefix(r.URL.Path, "/admin/v1/objects/")
			parts := strings.Split(strings.Trim(path, "/"), "/")
			if len(parts) != 2 || (parts[1] != "activate" && parts[1] != "deactivate") {
				http.NotFound(rw, r)
				return
			}
			objectID := parts[0]
			active := parts[1] == "activate"

			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			err := w.RequestSetObjectActive(ctx2, objectID, active)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "object_id": objectID, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "object_id": objectID, "active": active, "tick": w.CurrentTick()})
		})
		if rt.Observer != nil {
			mux.HandleFunc("/admin/v1/observer/bootstrap", rt.Observer.BootstrapHandler())
			mux.HandleFunc("/admin/v1/observer/ws", rt.Observer.WSHandler())
		}
	} else if logger != nil {
		logger.Printf("admin endpoints disabled (FC_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	if rt.WS != nil {
		mux.HandleFunc("/v1/ws", rt.WS.Handler())
	}
	return mux
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
