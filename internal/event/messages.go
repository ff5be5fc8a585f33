package event

import (
	"encoding/json"
	"time"

	"github.com/Iron-Ham/cockpit/internal/project"
)

// Wire message type tags emitted by the server.
const (
	typeProjectsUpdated = "projects_updated"
	typeSessionCreated  = "session-created"
	typeStatus          = "claude-status"
	typeComplete        = "claude-complete"
	typeAborted         = "session-aborted"
)

// Message is the interface implemented by all decoded channel messages.
type Message interface {
	// MessageType returns the wire type tag of this message.
	MessageType() string

	// ReceivedAt returns when the message was decoded.
	ReceivedAt() time.Time
}

// baseMessage provides common fields for all messages.
type baseMessage struct {
	messageType string
	receivedAt  time.Time
}

func (m baseMessage) MessageType() string   { return m.messageType }
func (m baseMessage) ReceivedAt() time.Time { return m.receivedAt }

func newBaseMessage(messageType string) baseMessage {
	return baseMessage{
		messageType: messageType,
		receivedAt:  time.Now(),
	}
}

// ProjectsUpdated carries a full project snapshot push from the server.
type ProjectsUpdated struct {
	baseMessage
	Projects []*project.Snapshot
}

// SessionCreated reports that the server created a session and assigned its
// real identifier.
type SessionCreated struct {
	baseMessage
	ProjectID string
	SessionID string
}

// StatusUpdate carries a normalized agent status tick for a project.
type StatusUpdate struct {
	baseMessage
	ProjectID string
	SessionID string
	Status    Status
}

// SessionEnded reports that a conversation finished, either by completing or
// by being aborted.
type SessionEnded struct {
	baseMessage
	ProjectID string
	Aborted   bool
}

// Status is the typed form of the agent status payload.
type Status struct {
	Text         string
	Tokens       int
	CanInterrupt *bool
}

// envelope is the raw wire shape shared by all message types.
type envelope struct {
	Type      string              `json:"type"`
	Projects  []*project.Snapshot `json:"projects"`
	ProjectID string              `json:"projectId"`
	SessionID string              `json:"sessionId"`
	Data      json.RawMessage     `json:"data"`
}

// rawStatus is the object form of the status payload. Older servers send
// "token_count" instead of "tokens"; some send the payload as a bare string.
type rawStatus struct {
	Text         string `json:"text"`
	Tokens       *int   `json:"tokens"`
	TokenCount   *int   `json:"token_count"`
	CanInterrupt *bool  `json:"can_interrupt"`
}

// NormalizeStatus folds the duck-typed wire status payload into a Status.
// Accepted shapes: a JSON string (becomes Text), or an object with "text" and
// either "tokens" or "token_count". Negative token counts are clamped to zero.
// Returns false when the payload is absent or matches no accepted shape.
func NormalizeStatus(raw json.RawMessage) (Status, bool) {
	if len(raw) == 0 {
		return Status{}, false
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return Status{Text: text}, true
	}

	var obj rawStatus
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Status{}, false
	}

	status := Status{
		Text:         obj.Text,
		CanInterrupt: obj.CanInterrupt,
	}
	switch {
	case obj.Tokens != nil:
		status.Tokens = *obj.Tokens
	case obj.TokenCount != nil:
		status.Tokens = *obj.TokenCount
	}
	if status.Tokens < 0 {
		status.Tokens = 0
	}
	return status, true
}

// decodeMessage parses one wire frame into a typed Message. It returns nil
// for unknown types and for frames that fail to decode: both are dropped, not
// errors, so one bad frame never stops the channel.
func decodeMessage(data []byte) Message {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}

	switch env.Type {
	case typeProjectsUpdated:
		return ProjectsUpdated{
			baseMessage: newBaseMessage(env.Type),
			Projects:    env.Projects,
		}
	case typeSessionCreated:
		if env.ProjectID == "" || env.SessionID == "" {
			return nil
		}
		return SessionCreated{
			baseMessage: newBaseMessage(env.Type),
			ProjectID:   env.ProjectID,
			SessionID:   env.SessionID,
		}
	case typeStatus:
		status, ok := NormalizeStatus(env.Data)
		if !ok || env.ProjectID == "" {
			return nil
		}
		return StatusUpdate{
			baseMessage: newBaseMessage(env.Type),
			ProjectID:   env.ProjectID,
			SessionID:   env.SessionID,
			Status:      status,
		}
	case typeComplete, typeAborted:
		if env.ProjectID == "" {
			return nil
		}
		return SessionEnded{
			baseMessage: newBaseMessage(env.Type),
			ProjectID:   env.ProjectID,
			Aborted:     env.Type == typeAborted,
		}
	default:
		return nil
	}
}
