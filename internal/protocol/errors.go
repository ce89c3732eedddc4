package protocol

// ACK rejection codes.
const (
	// Envelope: bad JSON, wrong type or version, schema failures.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrRateLimit       = "E_RATE_LIMIT"
	// The world inbox was full; the ACT was not queued.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Per call.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrUnknownCall = "E_UNKNOWN_CALL"
	ErrStale       = "E_STALE"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRateLimit:       {},
	ErrWorldBusy:       {},
	ErrBadRequest:      {},
	ErrUnknownCall:     {},
	ErrStale:           {},
}

// IsKnownCode reports whether code may appear in an ACK; "" is an accept.
func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Retryable reports whether resending the same calls later can succeed.
func Retryable(code string) bool {
	return code == ErrRateLimit || code == ErrWorldBusy
}
