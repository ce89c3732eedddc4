package interaction

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propAgents = []plainAgent{"a", "b", "c"}

// applyOps drives ia with encoded operations: op%4 selects the call and
// op/4 the agent.
func applyOps(ia *Interactable, ops []int) {
	for _, op := range ops {
		a := propAgents[(op/4)%len(propAgents)]
		switch op % 4 {
		case 0, 1:
			ia.BeginInteract(a)
		case 2:
			ia.EndInteract(a)
		case 3:
			ia.Interact(a)
		}
	}
}

func TestInteractorSetProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("interactor set never holds duplicates", prop.ForAll(
		func(ops []int, allowMultiple bool) bool {
			cfg := DefaultInteractableConfig()
			cfg.AllowMultipleInteractors = allowMultiple
			ia := NewInteractable(&testOwner{id: "obj"}, cfg)
			applyOps(ia, ops)

			seen := map[string]bool{}
			for _, a := range ia.Interactors() {
				if seen[a.AgentID()] {
					return false
				}
				seen[a.AgentID()] = true
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 11)),
		gen.Bool(),
	))

	properties.Property("single interactor objects hold at most one agent", prop.ForAll(
		func(ops []int) bool {
			cfg := DefaultInteractableConfig()
			cfg.AllowMultipleInteractors = false
			ia := NewInteractable(&testOwner{id: "obj"}, cfg)
			for i := range ops {
				applyOps(ia, ops[i:i+1])
				if len(ia.Interactors()) > 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 11)),
	))

	properties.Property("end calls on a fresh object emit exactly once", prop.ForAll(
		func(agent string, focus bool) bool {
			ia := NewInteractable(&testOwner{id: "obj"}, DefaultInteractableConfig())
			var got []Event
			ia.Subscribe(func(ev Event) { got = append(got, ev) })

			want := EventEndInteract
			if focus {
				want = EventEndFocus
				ia.EndFocus(plainAgent(agent))
			} else {
				ia.EndInteract(plainAgent(agent))
			}
			return len(got) == 1 && got[0].Kind == want && got[0].AgentID() == agent && len(ia.Interactors()) == 0
		},
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
