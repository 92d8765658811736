package http

import (
	"github.com/randomtoy/pickwheel/internal/domain"
)

// WheelResponse is the JSON shape of a wheel.
type WheelResponse struct {
	ID         string           `json:"id"`
	Options    []domain.Option  `json:"options"`
	SliceAngle float64          `json:"slice_angle"`
	State      domain.SpinState `json:"state"`
}

type CreateWheelRequest struct {
	Options []string `json:"options"`
	Preset  string   `json:"preset"`
}

type SetOptionsRequest struct {
	Options []string `json:"options"`
}

// SpinResponse tells the client where to animate to and for how long.
type SpinResponse struct {
	WheelID        string  `json:"wheel_id"`
	TargetRotation float64 `json:"target_rotation"`
	SliceAngle     float64 `json:"slice_angle"`
	DurationMS     int64   `json:"duration_ms"`
}

// ComputeSpinRequest is the stateless spin input. Draw is optional.
type ComputeSpinRequest struct {
	CurrentRotation float64  `json:"current_rotation"`
	OptionCount     int      `json:"option_count"`
	Draw            *float64 `json:"draw"`
}

type SuggestRequest struct {
	Cuisine   string   `json:"cuisine"`
	Location  string   `json:"location"`
	Count     int      `json:"count"`
	Exclude   []string `json:"exclude"`
	WebSearch bool     `json:"web_search"`
}

type TodosResponse struct {
	Todos []domain.Todo `json:"todos"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
