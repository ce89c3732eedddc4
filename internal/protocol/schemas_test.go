package protocol_test

import (
	"encoding/json"
	"testing"

	"focuscraft.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	for _, typ := range []string{protocol.TypeHello, protocol.TypeWelcome, protocol.TypeAct, protocol.TypeAck, protocol.TypeRepl, protocol.TypeEvent} {
		if !v.Has(typ) {
			t.Fatalf("missing schema for %s", typ)
		}
	}

	valid := map[string]string{
		protocol.TypeHello: `{"type":"HELLO","protocol_version":"1.0","agent_name":"bot1","max_queue":16}`,
		protocol.TypeWelcome: `{
		  "type":"WELCOME","protocol_version":"1.0","session_id":"s1","agent_id":"A1",
		  "world_params":{"world_id":"main","tick_rate_hz":20,"scan_frequency_ms":0,"scan_distance":1000,"eye_height":64},
		  "spawn":{"pos":[0,0,0],"yaw":0},
		  "can_interact":true,
		  "objects_digest":"deadbeef",
		  "objects":[{"id":"door","pos":[300,0,0],"radius":50,"parts":2,"interaction_time_ms":2000,
		    "interaction_distance":500,"allow_multiple_interactors":false,"name_text":"Door","action_text":"Open","active":true}]
		}`,
		protocol.TypeAct: `{"type":"ACT","protocol_version":"1.0","seq":3,"calls":[
		  {"type":"LOOK","pos":[0,64,0],"pitch":-10,"yaw":90},
		  {"type":"BEGIN_INTERACT"},
		  {"type":"END_INTERACT"},
		  {"type":"SET_CAN_INTERACT","value":false}]}`,
		protocol.TypeAck:   `{"type":"ACK","protocol_version":"1.0","ack_for":3,"accepted":false,"code":"E_STALE"}`,
		protocol.TypeRepl:  `{"type":"REPL","protocol_version":"1.0","tick":9,"agent_id":"A1","can_interact":false,"objects":[{"id":"door","active":false}]}`,
		protocol.TypeEvent: `{"type":"EVENT","protocol_version":"1.0","tick":9,"kind":"INTERACT","object_id":"door","agent_id":"A1"}`,
	}
	for typ, raw := range valid {
		if err := v.Validate(typ, []byte(raw)); err != nil {
			t.Fatalf("%s: validate: %v", typ, err)
		}
	}
}

func TestSchemas_RejectMalformedAct(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	bad := []string{
		`{"type":"ACT","protocol_version":"1.0","calls":[]}`,
		`{"type":"ACT","protocol_version":"1.0","seq":1,"calls":[{"type":"LOOK"}]}`,
		`{"type":"ACT","protocol_version":"1.0","seq":1,"calls":[{"type":"LOOK","pos":[1,2]}]}`,
		`{"type":"ACT","protocol_version":"1.0","seq":1,"calls":[{"type":"SET_CAN_INTERACT"}]}`,
		`{"type":"ACT","protocol_version":"1.0","seq":1,"calls":[{"type":"JUMP"}]}`,
		`{"type":"ACT","protocol_version":"1.0","seq":1,"calls":[{"type":"BEGIN_INTERACT","target":"door"}]}`,
		`{"type":"ACT","protocol_version":"1.0","seq":1,"calls":[{"type":"LOOK","pos":[0,0,0],"pitch":120}]}`,
		`{"type":"HELLO","protocol_version":"1.0","seq":1,"calls":[]}`,
		`not json`,
	}
	for _, raw := range bad {
		if err := v.Validate(protocol.TypeAct, []byte(raw)); err == nil {
			t.Fatalf("expected rejection: %s", raw)
		}
	}
	if err := v.Validate("OBS", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestActRoundTripMatchesSchema(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	yes := true
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Seq:             1,
		Calls: []protocol.Call{
			{Type: protocol.CallLook, Pos: &[3]float64{1, 2, 3}, Yaw: 45},
			{Type: protocol.CallSetCanInteract, Value: &yes},
		},
	}
	b, err := json.Marshal(act)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := v.Validate(protocol.TypeAct, b); err != nil {
		t.Fatalf("encoded ACT rejected: %v", err)
	}

	ack := protocol.NewAck(7, 12, protocol.ErrRateLimit, "slow down")
	if ack.Accepted || ack.AckFor != 7 || ack.ServerTick != 12 {
		t.Fatalf("ack: got %+v", ack)
	}
	b, _ = json.Marshal(ack)
	if err := v.Validate(protocol.TypeAck, b); err != nil {
		t.Fatalf("encoded ACK rejected: %v", err)
	}
}
