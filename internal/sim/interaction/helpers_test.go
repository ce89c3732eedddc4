package interaction

import (
	"fmt"
	"testing"

	"focuscraft.ai/internal/sim/clock"
	"focuscraft.ai/internal/sim/geom"
	"focuscraft.ai/internal/sim/space"
)

type testEnv struct {
	clk   *clock.Clock
	scene *space.Scene
	ias   map[string]*Interactable
}

func newTestEnv() *testEnv {
	return &testEnv{clk: clock.New(), scene: space.NewScene(), ias: map[string]*Interactable{}}
}

func (e *testEnv) Clock() *clock.Clock                    { return e.clk }
func (e *testEnv) InteractableOf(id string) *Interactable { return e.ias[id] }
func (e *testEnv) LineTraceSingle(start, end geom.Vec3, ignore ...string) (space.Hit, bool) {
	return e.scene.LineTraceSingle(start, end, ignore...)
}

func (e *testEnv) addObject(id string, center geom.Vec3, cfg InteractableConfig) (*Interactable, *testOwner) {
	o := &testOwner{id: id, prims: []*testPrim{{}, {}}}
	ia := NewInteractable(o, cfg)
	e.scene.Add(space.Body{ID: id, Center: center, Radius: 50})
	e.ias[id] = ia
	return ia, o
}

func (e *testEnv) addPawn(id string, authority bool, cfg InteractorConfig) *testPawn {
	p := &testPawn{id: id, authority: authority, view: true}
	p.in = NewInteractor(e, cfg)
	p.in.BeginPlay(p)
	return p
}

type testOwner struct {
	id       string
	headless bool
	prims    []*testPrim
}

func (o *testOwner) ActorID() string { return o.id }
func (o *testOwner) Headless() bool  { return o.headless }
func (o *testOwner) Primitives() []Primitive {
	out := make([]Primitive, 0, len(o.prims))
	for _, p := range o.prims {
		out = append(out, p)
	}
	return out
}

func (o *testOwner) highlighted() bool {
	for _, p := range o.prims {
		if !p.on {
			return false
		}
	}
	return len(o.prims) > 0
}

type testPrim struct{ on bool }

func (p *testPrim) SetHighlighted(on bool) { p.on = on }

type testWidget struct {
	updates int
	visible bool
	name    string
}

func (w *testWidget) Update(ia *Interactable) {
	w.updates++
	w.name = ia.NameText()
}
func (w *testWidget) SetVisible(v bool) { w.visible = v }

type testPawn struct {
	id        string
	authority bool
	view      bool
	loc       geom.Vec3
	rot       geom.Rotator
	in        *Interactor
}

func (p *testPawn) AgentID() string         { return p.id }
func (p *testPawn) Interactor() *Interactor { return p.in }
func (p *testPawn) HasAuthority() bool      { return p.authority }
func (p *testPawn) ViewPoint() (geom.Vec3, geom.Rotator, bool) {
	return p.loc, p.rot, p.view
}

func (p *testPawn) aimAt(target geom.Vec3) { p.rot = geom.LookAt(p.loc, target) }

// plainAgent is an Agent without an interactor.
type plainAgent string

func (a plainAgent) AgentID() string         { return string(a) }
func (a plainAgent) Interactor() *Interactor { return nil }

type testForwarder struct {
	calls []string
}

func (f *testForwarder) ServerBeginInteract(id string) {
	f.calls = append(f.calls, "begin:"+id)
}
func (f *testForwarder) ServerEndInteract(id string) {
	f.calls = append(f.calls, "end:"+id)
}
func (f *testForwarder) ServerSetCanInteract(id string, v bool) {
	f.calls = append(f.calls, fmt.Sprintf("can:%s:%v", id, v))
}

type testReplicator struct {
	values []bool
}

func (r *testReplicator) ReplicateCanInteract(_ string, v bool) { r.values = append(r.values, v) }

// recorder collects events as "KIND:agent@target".
type recorder struct {
	events []string
}

func (r *recorder) watch(ia *Interactable) func() {
	return ia.Subscribe(func(ev Event) {
		r.events = append(r.events, fmt.Sprintf("%s:%s@%s", ev.Kind, ev.AgentID(), ev.Target.ActorID()))
	})
}

func (r *recorder) count(s string) int {
	n := 0
	for _, e := range r.events {
		if e == s {
			n++
		}
	}
	return n
}

func (r *recorder) reset() { r.events = nil }

func expectEvents(t *testing.T, r *recorder, want ...string) {
	t.Helper()
	if len(r.events) != len(want) {
		t.Fatalf("events: got %v want %v", r.events, want)
	}
	for i := range want {
		if r.events[i] != want[i] {
			t.Fatalf("events: got %v want %v", r.events, want)
		}
	}
}
