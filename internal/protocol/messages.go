package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
	// MaxQueue sizes the server's outbound channel for this session.
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	AgentID         string       `json:"agent_id"`
	WorldParams     WorldParams  `json:"world_params"`
	Spawn           Pose         `json:"spawn"`
	CanInteract     bool         `json:"can_interact"`
	ObjectsDigest   string       `json:"objects_digest"`
	Objects         []ObjectInfo `json:"objects"`
}

type WorldParams struct {
	WorldID         string  `json:"world_id"`
	TickRateHz      int     `json:"tick_rate_hz"`
	ScanFrequencyMs int     `json:"scan_frequency_ms"`
	ScanDistance    float64 `json:"scan_distance"`
	EyeHeight       float64 `json:"eye_height"`
}

type Pose struct {
	Pos   [3]float64 `json:"pos"`
	Pitch float64    `json:"pitch"`
	Yaw   float64    `json:"yaw"`
}

// ObjectInfo is the fully resolved description of one world object.
type ObjectInfo struct {
	ID                       string     `json:"id"`
	Kind                     string     `json:"kind,omitempty"`
	Pos                      [3]float64 `json:"pos"`
	Radius                   float64    `json:"radius"`
	Parts                    int        `json:"parts"`
	InteractionTimeMs        int        `json:"interaction_time_ms"`
	InteractionDistance      float64    `json:"interaction_distance"`
	AllowMultipleInteractors bool       `json:"allow_multiple_interactors"`
	NameText                 string     `json:"name_text"`
	ActionText               string     `json:"action_text"`
	Active                   bool       `json:"active"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Seq increases per session; the server ignores replays.
	Seq     uint64 `json:"seq"`
	AgentID string `json:"agent_id,omitempty"`
	Calls   []Call `json:"calls"`
}

// Call types.
const (
	CallLook           = "LOOK"
	CallBeginInteract  = "BEGIN_INTERACT"
	CallEndInteract    = "END_INTERACT"
	CallSetCanInteract = "SET_CAN_INTERACT"
)

type Call struct {
	Type string `json:"type"`

	// LOOK
	Pos   *[3]float64 `json:"pos,omitempty"`
	Pitch float64     `json:"pitch,omitempty"`
	Yaw   float64     `json:"yaw,omitempty"`

	// SET_CAN_INTERACT
	Value *bool `json:"value,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          uint64 `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

// REPL (server -> client): authoritative replicated state.
type ReplMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	AgentID         string         `json:"agent_id"`
	CanInteract     *bool          `json:"can_interact,omitempty"`
	Objects         []ObjectActive `json:"objects,omitempty"`
}

type ObjectActive struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// EVENT (server -> client): one interaction event involving the receiver.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Kind            string `json:"kind"` // "BEGIN_FOCUS","END_FOCUS","END_INTERACT","INTERACT"
	ObjectID        string `json:"object_id"`
	AgentID         string `json:"agent_id,omitempty"`
}

func NewAck(seq uint64, tick uint64, code, message string) AckMsg {
	return AckMsg{
		Type:            TypeAck,
		ProtocolVersion: Version,
		AckFor:          seq,
		Accepted:        code == "",
		Code:            code,
		Message:         message,
		ServerTick:      tick,
	}
}
