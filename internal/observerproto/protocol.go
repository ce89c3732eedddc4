package observerproto

import "focuscraft.ai/internal/protocol"

// Version is the observer protocol version (separate from the agent WS protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Agents limits frames to these agent ids; empty means all.
	Agents []string `json:"agents,omitempty"`
	// EveryTicks sends one frame per N world ticks.
	EveryTicks int `json:"every_ticks,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string                `json:"protocol_version"`
	WorldID         string                `json:"world_id"`
	Role            string                `json:"role"`
	Tick            uint64                `json:"tick"`
	TickRateHz      int                   `json:"tick_rate_hz"`
	Objects         []protocol.ObjectInfo `json:"objects"`
}

// Server -> Client.
type FrameMsg struct {
	Type            string `json:"type"` // "FRAME"
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Focusing    int     `json:"focusing"`
	Interacting int     `json:"interacting"`
	EventsTotal uint64  `json:"events_total"`
	StepMS      float64 `json:"step_ms"`

	Agents  []AgentState   `json:"agents"`
	Objects []ObjectState  `json:"objects,omitempty"`
	Events  []EventSummary `json:"events,omitempty"`
}

type AgentState struct {
	ID          string     `json:"id"`
	Pos         [3]float64 `json:"pos"`
	Pitch       float64    `json:"pitch"`
	Yaw         float64    `json:"yaw"`
	Target      string     `json:"target,omitempty"`
	CanInteract bool       `json:"can_interact"`
	Held        bool       `json:"held"`
	Interacting bool       `json:"interacting"`
	RemainingMs int64      `json:"remaining_ms,omitempty"`
	Progress    float64    `json:"progress,omitempty"`
}

type ObjectState struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

type EventSummary struct {
	Tick     uint64 `json:"tick"`
	Kind     string `json:"kind"`
	ObjectID string `json:"object_id"`
	AgentID  string `json:"agent_id,omitempty"`
}
