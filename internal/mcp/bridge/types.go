package bridge

import (
	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/world"
)

// Status is returned by focuscraft.get_status.
type Status struct {
	Connected     bool   `json:"connected"`
	Paused        bool   `json:"paused,omitempty"`
	AgentID       string `json:"agent_id,omitempty"`
	WorldWSURL    string `json:"world_ws_url"`
	WorldID       string `json:"world_id,omitempty"`
	Tick          uint64 `json:"tick"`
	ObjectsDigest string `json:"objects_digest,omitempty"`
	DroppedEvents uint64 `json:"dropped_events,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

type GetViewOpts struct {
	WaitNewTick bool `json:"wait_new_tick"`
	TimeoutMS   int  `json:"timeout_ms"`
}

type ViewResult struct {
	Tick    uint64          `json:"tick"`
	AgentID string          `json:"agent_id"`
	View    world.AgentView `json:"view"`
}

type GetEventsOpts struct {
	SinceCursor uint64 `json:"since_cursor"`
	Limit       int    `json:"limit"`
	WaitMS      int    `json:"wait_ms"`
}

// EventRecord is an EVENT as buffered by a session; Cursor grows by one per
// event received on that session.
type EventRecord struct {
	Cursor   uint64 `json:"cursor"`
	Tick     uint64 `json:"tick"`
	Kind     string `json:"kind"`
	ObjectID string `json:"object_id"`
	AgentID  string `json:"agent_id,omitempty"`
}

type EventsResult struct {
	Events     []EventRecord `json:"events"`
	NextCursor uint64        `json:"next_cursor"`
	// Dropped counts events lost before the caller could read them.
	Dropped uint64 `json:"dropped,omitempty"`
}

// ObjectView is an object as the replica sees it, with the distance from the
// agent's eye.
type ObjectView struct {
	protocol.ObjectInfo
	Distance float64 `json:"distance"`
	Focused  bool    `json:"focused,omitempty"`
}

// LookArgs aims at ObjectID when set, otherwise at Pitch/Yaw (degrees).
type LookArgs struct {
	ObjectID string   `json:"object_id,omitempty"`
	Pitch    *float64 `json:"pitch,omitempty"`
	Yaw      *float64 `json:"yaw,omitempty"`
}

type LookResult struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	// Target is the focus before the look; the new focus shows up in a later
	// view once the scan runs.
	Target string `json:"target,omitempty"`
}

type InteractArgs struct {
	Action string `json:"action"` // "begin" | "end"
}

type ActionResult struct {
	OK      bool   `json:"ok"`
	AgentID string `json:"agent_id"`
}
