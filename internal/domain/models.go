package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinOptions = 2
	MaxOptions = 20
)

// Option is one labelled slice of the wheel. Order determines angular position.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NewOption returns an option with a fresh id.
func NewOption(text string) Option {
	return Option{ID: uuid.NewString(), Text: text}
}

// OptionsFromTexts builds options in the given order, skipping blank labels.
func OptionsFromTexts(texts []string) []Option {
	out := make([]Option, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, NewOption(t))
	}
	return out
}

// SpinState is the observable state of a wheel.
type SpinState struct {
	CumulativeRotation float64 `json:"cumulative_rotation"`
	IsSpinning         bool    `json:"is_spinning"`
	Winner             *Option `json:"winner"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one entry of a session's append-only transcript.
type ChatMessage struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"is_streaming"`
}

// Recognition is the decoded result of the OCR feature.
type Recognition struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Failed   bool   `json:"failed,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Todo is one calendar entry extracted by the model.
type Todo struct {
	Title string `json:"title"`
	Date  string `json:"date,omitempty"`
	Time  string `json:"time,omitempty"`
	Note  string `json:"note,omitempty"`
}
