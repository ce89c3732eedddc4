package mcp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerAgentID   = "x-agent-id"
	headerTS        = "x-ts"
	headerSignature = "x-signature"
	headerNonce     = "x-nonce"

	maxClockSkew = 5 * time.Minute
)

// canonicalString is the legacy (v1) signing input without agent id or nonce.
func canonicalString(ts, method, pathname string, rawBody []byte) string {
	return ts + "\n" + strings.ToUpper(method) + "\n" + pathname + "\n" + string(rawBody)
}

func canonicalStringV2(ts, method, pathname, agentID, nonce string, rawBody []byte) string {
	return ts + "\n" + strings.ToUpper(method) + "\n" + pathname + "\n" + strings.TrimSpace(agentID) + "\n" + strings.TrimSpace(nonce) + "\n" + string(rawBody)
}

func signHMAC(secret []byte, canonical string) string {
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

type hmacVerifyResult struct {
	SessionKey string
	Signature  string
	HTTPStatus int
	Message    string
}

func deny(msg string) hmacVerifyResult {
	return hmacVerifyResult{HTTPStatus: http.StatusUnauthorized, Message: msg}
}

// verifyHMAC checks the signature headers. The agent id becomes the session
// key, so one signer always drives the same world agent.
func verifyHMAC(r *http.Request, rawBody, secret []byte, now time.Time, allowLegacy bool) hmacVerifyResult {
	agentID := strings.TrimSpace(r.Header.Get(headerAgentID))
	if agentID == "" {
		return deny("missing x-agent-id")
	}
	tsStr := strings.TrimSpace(r.Header.Get(headerTS))
	if tsStr == "" {
		return deny("missing x-ts")
	}
	sig := strings.ToLower(strings.TrimSpace(r.Header.Get(headerSignature)))
	if sig == "" {
		return deny("missing x-signature")
	}
	nonce := strings.TrimSpace(r.Header.Get(headerNonce))
	if nonce == "" && !allowLegacy {
		return deny("missing x-nonce")
	}

	tsMS, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return deny("bad x-ts")
	}
	if d := now.Sub(time.UnixMilli(tsMS)); d > maxClockSkew || d < -maxClockSkew {
		return deny("x-ts outside window")
	}

	ok := func(exp string) bool { return hmac.Equal([]byte(sig), []byte(exp)) }
	if nonce != "" && ok(signHMAC(secret, canonicalStringV2(tsStr, r.Method, r.URL.Path, agentID, nonce, rawBody))) {
		return hmacVerifyResult{SessionKey: agentID, Signature: sig}
	}
	if allowLegacy && ok(signHMAC(secret, canonicalString(tsStr, r.Method, r.URL.Path, rawBody))) {
		return hmacVerifyResult{SessionKey: agentID, Signature: sig}
	}
	return deny("bad signature")
}

func requireLoopback(r *http.Request) error {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil && ip.IsLoopback() {
		return nil
	}
	return errors.New("forbidden: non-loopback client")
}
