// Package interaction decides which target an agent is focused on and what
// state each agent/target pair is in.
//
// An Interactor is attached to an agent and drives everything: it scans along
// the agent's aim, focuses Interactables, and runs the hold-to-interact timer.
// An Interactable is attached to a world object and only reacts. On instances
// without authority the Interactor forwards intents to the server and runs the
// same code locally as prediction; the server replicates CanInteract back.
package interaction
