package world

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/catalogs"
	"focuscraft.ai/internal/sim/clock"
	"focuscraft.ai/internal/sim/geom"
	"focuscraft.ai/internal/sim/interaction"
	"focuscraft.ai/internal/sim/space"
)

type JoinRequest struct {
	Name      string
	SessionID string
	Out       chan []byte
	Resp      chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

type ObjectActiveRequest struct {
	ObjectID string
	Active   bool
	Resp     chan error
}

// StepInput is everything queued for one tick boundary.
type StepInput struct {
	Joins      []JoinRequest
	Leaves     []string
	Actions    []ActionEnvelope
	Replicated []protocol.ReplMsg
	Admin      []ObjectActiveRequest
}

type RecordedJoin struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

type RecordedToggle struct {
	ObjectID string `json:"object_id"`
	Active   bool   `json:"active"`
}

type RecordedCall struct {
	AgentID string        `json:"agent_id"`
	Seq     uint64        `json:"seq"`
	Call    protocol.Call `json:"call"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick   uint64           `json:"tick"`
	World  string           `json:"world"`
	Joins  []RecordedJoin   `json:"joins,omitempty"`
	Leaves []string         `json:"leaves,omitempty"`
	Admin  []RecordedToggle `json:"admin,omitempty"`
	Calls  []RecordedCall   `json:"calls,omitempty"`
	Events int              `json:"events,omitempty"`
	Digest string           `json:"digest"`
}

// AuditEntry is one interaction event.
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	World  string `json:"world"`
	Role   string `json:"role"`
	Kind   string `json:"kind"`
	Object string `json:"object"`
	Agent  string `json:"agent,omitempty"`
}

// EventRecord is an interaction event as seen from the world loop.
type EventRecord struct {
	Tick     uint64
	Kind     interaction.EventKind
	ObjectID string
	AgentID  string
}

// World is a single-threaded simulation of agents and interactable objects.
// All state must be accessed only from the world loop goroutine; other
// goroutines talk to it through the request channels and read Metrics/View.
type World struct {
	cfg    WorldConfig
	spawns catalogs.SpawnCatalog

	objectsDigest string

	tick  atomic.Uint64
	clock *clock.Clock
	scene *space.Scene

	agents      map[string]*Agent
	agentOrder  []string
	objects     map[string]*Object
	objectOrder []string
	clients     map[string]*clientState

	inbox      chan ActionEnvelope
	join       chan JoinRequest
	leave      chan string
	replicated chan protocol.ReplMsg
	admin      chan ObjectActiveRequest
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
	doneOnce   sync.Once

	nextAgentNum atomic.Uint64

	// Replica only: carries local intents to the server.
	forwarder interaction.Forwarder

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger
	eventSink   func(EventRecord)
	logger      *log.Logger

	eventsThisTick int
	eventsTotal    uint64

	metrics     atomic.Value
	views       atomic.Value
	objectInfos atomic.Value
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("world %s: tick_rate_hz must be > 0", cfg.ID)
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 256
	}
	if cats == nil {
		cats = &catalogs.Catalogs{}
	}

	w := &World{
		cfg:           cfg,
		spawns:        cats.Spawns,
		objectsDigest: cats.Objects.Digest,
		clock:         clock.New(),
		scene:         space.NewScene(),
		agents:        map[string]*Agent{},
		objects:       map[string]*Object{},
		clients:       map[string]*clientState{},
		inbox:         make(chan ActionEnvelope, 1024),
		join:          make(chan JoinRequest, 64),
		leave:         make(chan string, 64),
		replicated:    make(chan protocol.ReplMsg, 256),
		admin:         make(chan ObjectActiveRequest, 16),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, id := range cats.Objects.Order {
		w.spawnObject(cats.Objects.Defs[id])
	}
	w.metrics.Store(WorldMetrics{Role: cfg.Role.String()})
	w.views.Store(map[string]AgentView{})
	infos := make([]protocol.ObjectInfo, 0, len(w.objectOrder))
	for _, id := range w.objectOrder {
		infos = append(infos, w.objects[id].Info())
	}
	w.objectInfos.Store(infos)
	return w, nil
}

// CatalogsFromWelcome rebuilds the object catalog a server resolved, for a
// replica world.
func CatalogsFromWelcome(msg protocol.WelcomeMsg) *catalogs.Catalogs {
	c := &catalogs.Catalogs{}
	c.Objects.Digest = msg.ObjectsDigest
	c.Objects.Defs = make(map[string]catalogs.ObjectDef, len(msg.Objects))
	for _, info := range msg.Objects {
		c.Objects.Defs[info.ID] = ObjectDefFromInfo(info)
		c.Objects.Order = append(c.Objects.Order, info.ID)
	}
	sort.Strings(c.Objects.Order)
	return c
}

func (w *World) Inbox() chan<- ActionEnvelope        { return w.inbox }
func (w *World) Join() chan<- JoinRequest            { return w.join }
func (w *World) Leave() chan<- string                { return w.leave }
func (w *World) Replicated() chan<- protocol.ReplMsg { return w.replicated }
func (w *World) Admin() chan<- ObjectActiveRequest   { return w.admin }

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetLogger(l *log.Logger)      { w.logger = l }

// SetEventSink registers fn for every interaction event. fn runs on the world
// loop goroutine and must not block.
func (w *World) SetEventSink(fn func(EventRecord)) { w.eventSink = fn }

// LookForwarder is implemented by replica forwarders that also carry pose
// updates. A replica forwards LOOK when it applies it, so the server sees
// pose and interaction intents in the order the replica ran them.
type LookForwarder interface {
	ServerLook(agentID string, pos [3]float64, pitch, yaw float64)
}

// SetForwarder must be called before SpawnLocal on a replica.
func (w *World) SetForwarder(f interaction.Forwarder) { w.forwarder = f }

func (w *World) ID() string { return w.cfg.ID }

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Clock, LineTraceSingle and InteractableOf make the world the interaction
// environment of its agents.
func (w *World) Clock() *clock.Clock { return w.clock }

func (w *World) LineTraceSingle(start, end geom.Vec3, ignore ...string) (space.Hit, bool) {
	return w.scene.LineTraceSingle(start, end, ignore...)
}

func (w *World) InteractableOf(actorID string) *interaction.Interactable {
	if o := w.objects[actorID]; o != nil {
		return o.ia
	}
	return nil
}

// Agent and Object are for tests and the loop goroutine only.
func (w *World) Agent(id string) *Agent   { return w.agents[id] }
func (w *World) Object(id string) *Object { return w.objects[id] }

func (w *World) spawnObject(def catalogs.ObjectDef) {
	o := &Object{
		ID:     def.ID,
		Kind:   def.Kind,
		Pos:    geom.FromArray(def.Pos),
		Radius: def.Radius,
		Prompt: &Prompt{},
		world:  w,
	}
	parts := def.Parts
	if parts <= 0 {
		parts = 1
	}
	for i := 0; i < parts; i++ {
		o.Parts = append(o.Parts, &Part{})
	}
	o.ia = interaction.NewInteractable(o, InteractableConfig(def, w.cfg.ObjectDefaults))
	o.ia.SetWidget(o.Prompt)
	o.ia.Subscribe(w.handleEvent)
	if def.Inactive {
		o.ia.Deactivate()
	}

	w.scene.Add(space.Body{ID: o.ID, Center: o.Pos, Radius: o.Radius})
	w.objects[o.ID] = o
	w.objectOrder = insertSorted(w.objectOrder, o.ID)
}

func (w *World) addAgent(id, name string, pos geom.Vec3, rot geom.Rotator) *Agent {
	a := &Agent{
		ID:         id,
		Name:       name,
		Pos:        pos,
		Rot:        rot,
		Controlled: true,
		world:      w,
	}
	a.in = interaction.NewInteractor(w, w.cfg.Interactor)
	if w.cfg.Role == RoleAuthority {
		a.in.SetReplicator(w)
	} else if w.forwarder != nil {
		a.in.SetForwarder(w.forwarder)
	}
	a.in.BeginPlay(a)

	w.agents[id] = a
	w.agentOrder = insertSorted(w.agentOrder, id)
	return a
}

// SpawnLocal creates the single locally controlled agent of a replica world.
// It must be called before Run.
func (w *World) SpawnLocal(agentID, name string, spawn protocol.Pose, canInteract bool) *Agent {
	a := w.addAgent(agentID, name, geom.FromArray(spawn.Pos), geom.Rotator{Pitch: spawn.Pitch, Yaw: spawn.Yaw})
	a.in.ApplyReplicatedCanInteract(canInteract)
	return a
}

func (w *World) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}
