package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Turn is a single utterance in a conversation, by either side.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Transcript is the ordered turn list for one session.
type Transcript struct {
	Turns []Turn `json:"turns"`
}

// Empty reports whether the transcript carries no spoken content at all.
func (t *Transcript) Empty() bool {
	if t == nil {
		return true
	}
	for _, turn := range t.Turns {
		if strings.TrimSpace(turn.Content) != "" {
			return false
		}
	}
	return true
}

// UserTurns returns only the learner's side of the conversation.
func (t *Transcript) UserTurns() []Turn {
	var out []Turn
	for _, turn := range t.Turns {
		if strings.EqualFold(turn.Role, "user") {
			out = append(out, turn)
		}
	}
	return out
}

// WordCount counts whitespace-separated words across the learner's turns.
func (t *Transcript) WordCount() int {
	n := 0
	for _, turn := range t.UserTurns() {
		n += len(strings.Fields(turn.Content))
	}
	return n
}

type rawTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func (r rawTurn) toTurn() Turn {
	content := r.Content
	if content == "" {
		content = r.Text
	}
	return Turn{Role: r.Role, Content: content, Timestamp: r.Timestamp}
}

// Parse decodes a transcript payload. Session hosts disagree on the envelope:
// some send {"turns": [...]}, some {"messages": [...]} or {"items": [...]},
// and some a bare array. All four are accepted.
func Parse(data []byte) (*Transcript, error) {
	var envelope struct {
		Turns    []rawTurn `json:"turns"`
		Messages []rawTurn `json:"messages"`
		Items    []rawTurn `json:"items"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		var bare []rawTurn
		if bareErr := json.Unmarshal(data, &bare); bareErr != nil {
			return nil, fmt.Errorf("parsing transcript: %w", err)
		}
		return fromRaw(bare), nil
	}

	switch {
	case len(envelope.Turns) > 0:
		return fromRaw(envelope.Turns), nil
	case len(envelope.Messages) > 0:
		return fromRaw(envelope.Messages), nil
	case len(envelope.Items) > 0:
		return fromRaw(envelope.Items), nil
	}
	return &Transcript{}, nil
}

func fromRaw(raws []rawTurn) *Transcript {
	t := &Transcript{Turns: make([]Turn, 0, len(raws))}
	for _, r := range raws {
		t.Turns = append(t.Turns, r.toTurn())
	}
	return t
}
