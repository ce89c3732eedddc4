// Package client connects to a focuscraft server as a non-authoritative
// instance. It runs a replica world for local prediction: presses are applied
// locally right away and forwarded to the server, and the server's replicated
// state is fed back into the replica.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/interaction"
	"focuscraft.ai/internal/sim/tuning"
	"focuscraft.ai/internal/sim/world"
)

type Config struct {
	URL  string
	Name string
	// MaxQueue is requested from the server for its outbound channel.
	MaxQueue int
	Logger   *log.Logger
}

type Client struct {
	conn      *websocket.Conn
	log       *log.Logger
	validator *protocol.Validator

	welcome protocol.WelcomeMsg
	world   *world.World

	// Outbound ACTs queue here without bound; forwarder calls run on the
	// replica's world loop and must not block.
	sendMu  sync.Mutex
	seq     uint64
	pending [][]byte
	wake    chan struct{}

	events chan protocol.EventMsg
	acks   chan protocol.AckMsg

	droppedEvents atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial connects, performs the HELLO/WELCOME handshake and builds the replica
// world from the WELCOME. Call Run to start it.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	v, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       cfg.Name,
		MaxQueue:        cfg.MaxQueue,
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if err := v.Validate(protocol.TypeWelcome, raw); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bad WELCOME: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(raw, &welcome); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c := &Client{
		conn:      conn,
		log:       cfg.Logger,
		validator: v,
		welcome:   welcome,
		wake:      make(chan struct{}, 1),
		events:    make(chan protocol.EventMsg, 256),
		acks:      make(chan protocol.AckMsg, 64),
		done:      make(chan struct{}),
	}

	w, err := world.New(ReplicaConfig(welcome), world.CatalogsFromWelcome(welcome))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	w.SetLogger(cfg.Logger)
	w.SetForwarder(c)
	w.SpawnLocal(welcome.AgentID, cfg.Name, welcome.Spawn, welcome.CanInteract)
	c.world = w

	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// ReplicaConfig mirrors the server's world parameters for local prediction.
func ReplicaConfig(welcome protocol.WelcomeMsg) world.WorldConfig {
	p := welcome.WorldParams
	return world.WorldConfig{
		ID:         p.WorldID,
		Role:       world.RoleReplica,
		TickRateHz: p.TickRateHz,
		Interactor: interaction.InteractorConfig{
			ScanFrequency: time.Duration(p.ScanFrequencyMs) * time.Millisecond,
			ScanDistance:  p.ScanDistance,
			CanInteract:   welcome.CanInteract,
		},
		EyeHeight:      p.EyeHeight,
		ObjectDefaults: tuning.Defaults().Interactable,
	}
}

// Run steps the replica world until ctx ends or the connection drops.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	err := c.world.Run(ctx)
	if e := c.Err(); e != nil {
		return e
	}
	return err
}

func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	c.fail(nil)
	return c.conn.Close()
}

func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }
func (c *Client) AgentID() string              { return c.welcome.AgentID }
func (c *Client) World() *world.World          { return c.world }
func (c *Client) Done() <-chan struct{}        { return c.done }

// Events delivers the server's EVENT messages. When the consumer falls behind
// new events are dropped and counted.
func (c *Client) Events() <-chan protocol.EventMsg { return c.events }
func (c *Client) Acks() <-chan protocol.AckMsg     { return c.acks }
func (c *Client) DroppedEvents() uint64            { return c.droppedEvents.Load() }

// View is the replica's (predicted) state of the local agent.
func (c *Client) View() (world.AgentView, bool) { return c.world.View(c.welcome.AgentID) }

func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Look moves the local agent's view. The replica applies it at its next tick
// and forwards it then, in line with any presses queued around it.
func (c *Client) Look(pos [3]float64, pitch, yaw float64) {
	c.local(protocol.Call{Type: protocol.CallLook, Pos: &pos, Pitch: pitch, Yaw: yaw})
}

// BeginInteract presses interact. The replica applies it and its interactor
// forwards the press to the server.
func (c *Client) BeginInteract() { c.local(protocol.Call{Type: protocol.CallBeginInteract}) }
func (c *Client) EndInteract()   { c.local(protocol.Call{Type: protocol.CallEndInteract}) }

// SetCanInteract asks the server to change the gate; the replica follows once
// the server replicates the new value.
func (c *Client) SetCanInteract(v bool) {
	c.local(protocol.Call{Type: protocol.CallSetCanInteract, Value: &v})
}

func (c *Client) local(call protocol.Call) {
	env := world.ActionEnvelope{AgentID: c.welcome.AgentID, Act: protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Calls:           []protocol.Call{call},
	}}
	select {
	case c.world.Inbox() <- env:
	case <-c.done:
	}
}

// ServerLook, ServerBeginInteract, ServerEndInteract and ServerSetCanInteract
// make the client the replica's forwarder.
func (c *Client) ServerLook(agentID string, pos [3]float64, pitch, yaw float64) {
	c.sendCalls(protocol.Call{Type: protocol.CallLook, Pos: &pos, Pitch: pitch, Yaw: yaw})
}

func (c *Client) ServerBeginInteract(agentID string) {
	c.sendCalls(protocol.Call{Type: protocol.CallBeginInteract})
}

func (c *Client) ServerEndInteract(agentID string) {
	c.sendCalls(protocol.Call{Type: protocol.CallEndInteract})
}

func (c *Client) ServerSetCanInteract(agentID string, value bool) {
	v := value
	c.sendCalls(protocol.Call{Type: protocol.CallSetCanInteract, Value: &v})
}

// sendCalls queues one ACT. The sequence number is taken under sendMu so the
// server sees ACTs in seq order.
func (c *Client) sendCalls(calls ...protocol.Call) {
	c.sendMu.Lock()
	c.seq++
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Seq:             c.seq,
		AgentID:         c.welcome.AgentID,
		Calls:           calls,
	}
	b, err := json.Marshal(act)
	if err == nil {
		c.pending = append(c.pending, b)
	}
	c.sendMu.Unlock()
	if err != nil {
		return
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}
		c.sendMu.Lock()
		batch := c.pending
		c.pending = nil
		c.sendMu.Unlock()

		for _, b := range batch {
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.fail(fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("read: %w", err))
			return
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			continue
		}
		if c.validator.Has(base.Type) {
			if err := c.validator.Validate(base.Type, raw); err != nil {
				c.logf("drop invalid %s: %v", base.Type, err)
				continue
			}
		}
		switch base.Type {
		case protocol.TypeRepl:
			var m protocol.ReplMsg
			if err := json.Unmarshal(raw, &m); err != nil {
				continue
			}
			select {
			case c.world.Replicated() <- m:
			case <-c.done:
				return
			}
		case protocol.TypeEvent:
			var m protocol.EventMsg
			if err := json.Unmarshal(raw, &m); err != nil {
				continue
			}
			select {
			case c.events <- m:
			default:
				c.droppedEvents.Add(1)
			}
		case protocol.TypeAck:
			var m protocol.AckMsg
			if err := json.Unmarshal(raw, &m); err != nil {
				continue
			}
			if !m.Accepted {
				c.logf("ACT %d rejected: %s %s", m.AckFor, m.Code, m.Message)
			}
			select {
			case c.acks <- m:
			default:
			}
		}
	}
}

// fail records the first error and releases everything waiting on done.
func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.err = err
		}
		c.errMu.Unlock()
		close(c.done)
	})
}

func (c *Client) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}
