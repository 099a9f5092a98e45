package websocket

import (
	"time"

	"github.com/openfactory/designcore/internal/simulation"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Simulation messages
	MessageTypeSimulationState MessageType = "simulation_state"
	MessageTypeSimulationTick  MessageType = "simulation_tick"

	// Project messages
	MessageTypeProjectSaved   MessageType = "project_saved"
	MessageTypeProjectLoaded  MessageType = "project_loaded"
	MessageTypeProjectDeleted MessageType = "project_deleted"

	// System messages
	MessageTypeBackendHealth MessageType = "backend_health"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// SimulationData carries one stepper event to the clients
type SimulationData struct {
	State string `json:"state"`
	Step  int    `json:"step"`
	Bound int    `json:"bound"`
	Line  string `json:"line,omitempty"`
}

// ProjectData identifies the project an event refers to
type ProjectData struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name,omitempty"`
}

// BackendHealthData carries the latest health-check verdict
type BackendHealthData struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewSimulationMessage converts a stepper event into a broadcast message.
// Ticks and state changes use distinct types so clients can filter.
func NewSimulationMessage(event simulation.Event) Message {
	msgType := MessageTypeSimulationState
	if event.Line != "" && event.State == simulation.StateRunning {
		msgType = MessageTypeSimulationTick
	}
	return NewMessage(msgType, SimulationData{
		State: string(event.State),
		Step:  event.Step,
		Bound: event.Bound,
		Line:  event.Line,
	})
}
