package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// maxCallbackData is the Bot API limit for inline button payloads.
const maxCallbackData = 64

// Callback actions carried in inline button data.
const (
	ActionAnswer   = "a"
	ActionNext     = "n"
	ActionRegister = "r"
	ActionRecover  = "v"
)

var (
	errMalformedCallback = errors.New("malformed callback data")
	errCallbackTooLong   = errors.New("callback data exceeds 64 bytes")
)

// Callback is a decoded inline button press. Handle is the short alias of a
// session handle; QuestionID and Key are set for answers only.
type Callback struct {
	Action     string
	Handle     string
	QuestionID string
	Key        string
}

// Encode renders the callback as "a:<handle>:<question>:<key>" for answers
// and "<action>:<handle>" otherwise.
func (c Callback) Encode() (string, error) {
	var data string
	switch c.Action {
	case ActionAnswer:
		if c.QuestionID == "" || c.Key == "" {
			return "", errMalformedCallback
		}
		data = strings.Join([]string{c.Action, c.Handle, c.QuestionID, c.Key}, ":")
	case ActionNext, ActionRegister, ActionRecover:
		data = c.Action + ":" + c.Handle
	default:
		return "", fmt.Errorf("%w: unknown action %q", errMalformedCallback, c.Action)
	}
	if c.Handle == "" || strings.Contains(c.Handle, ":") {
		return "", errMalformedCallback
	}
	if len(data) > maxCallbackData {
		return "", errCallbackTooLong
	}
	return data, nil
}

// ParseCallback decodes inline button data. Keys may contain ':'.
func ParseCallback(data string) (Callback, error) {
	parts := strings.SplitN(data, ":", 4)
	if len(parts) < 2 || parts[1] == "" {
		return Callback{}, errMalformedCallback
	}
	c := Callback{Action: parts[0], Handle: parts[1]}
	switch c.Action {
	case ActionAnswer:
		if len(parts) != 4 || parts[2] == "" || parts[3] == "" {
			return Callback{}, errMalformedCallback
		}
		c.QuestionID, c.Key = parts[2], parts[3]
	case ActionNext, ActionRegister, ActionRecover:
		if len(parts) != 2 {
			return Callback{}, errMalformedCallback
		}
	default:
		return Callback{}, fmt.Errorf("%w: unknown action %q", errMalformedCallback, c.Action)
	}
	return c, nil
}

// Handles maps session handles to short aliases so callback data stays under
// the Bot API limit whatever the session id format.
type Handles struct {
	mu      sync.Mutex
	next    uint64
	alias   map[string]string
	session map[string]string
}

func NewHandles() *Handles {
	return &Handles{alias: make(map[string]string), session: make(map[string]string)}
}

// Alias returns the short alias for sessionID, allocating one if needed.
func (h *Handles) Alias(sessionID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.alias[sessionID]; ok {
		return a
	}
	h.next++
	a := strconv.FormatUint(h.next, 36)
	h.alias[sessionID] = a
	h.session[a] = sessionID
	return a
}

// Resolve returns the session handle behind an alias.
func (h *Handles) Resolve(alias string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.session[alias]
	return id, ok
}

// Forget drops the alias of a finished session.
func (h *Handles) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.alias[sessionID]; ok {
		delete(h.session, a)
		delete(h.alias, sessionID)
	}
}
