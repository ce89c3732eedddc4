package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// stateDigest hashes the interaction-relevant state so two runs fed the same
// inputs can be compared tick by tick.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(w.clock.Now()))

	for _, id := range w.agentOrder {
		a := w.agents[id]
		in := a.in
		h.Write([]byte(id))
		for _, f := range []float64{a.Pos.X, a.Pos.Y, a.Pos.Z, a.Rot.Pitch, a.Rot.Yaw} {
			digestWriteU64(h, &tmp, math.Float64bits(f))
		}
		h.Write([]byte(in.CurrentActor()))
		h.Write([]byte{boolByte(in.CanInteract()), boolByte(in.InteractHeld()), boolByte(in.IsInteracting())})
		digestWriteU64(h, &tmp, uint64(in.RemainingInteractTime()))
	}

	for _, id := range w.objectOrder {
		ia := w.objects[id].ia
		h.Write([]byte(id))
		h.Write([]byte{boolByte(ia.IsActive())})
		for _, a := range ia.Interactors() {
			h.Write([]byte(a.AgentID()))
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
