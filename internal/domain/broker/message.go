// Package broker defines the typed message envelope and channel
// vocabulary shared between the Planner and Executor processes (spec §3
// BrokerMessage, §4.4, §6.3). The transport itself lives in
// internal/infrastructure/broker; this package only carries the wire
// shapes both processes agree on.
package broker

import "encoding/json"

// MessageType enumerates the BrokerMessage.message_type values.
type MessageType string

const (
	TypeProtocol            MessageType = "protocol"
	TypeProtocolStatus       MessageType = "protocol_status"
	TypeVisualNavRequest     MessageType = "visual_nav_request"
	TypeVisualNavResponse    MessageType = "visual_nav_response"
	TypeVisualStateRequest   MessageType = "visual_state_request"
	TypeVisualStateResponse  MessageType = "visual_state_response"
	TypeVisualActionCmd      MessageType = "visual_action_cmd"
	TypeVisualActionResult   MessageType = "visual_action_result"
)

// Channel names — one directory per channel under the broker root (§4.4, §6.3).
const (
	ChannelProtocols           = "protocols"
	ChannelStatus              = "status"
	ChannelVisualNavRequest    = "visual_nav_request"
	ChannelVisualNavResponse   = "visual_nav_response"
	ChannelVisualStateRequest  = "visual_state_request"
	ChannelVisualStateResponse = "visual_state_response"
	ChannelVisualActionCmd     = "visual_action_cmd"
	ChannelVisualActionResult  = "visual_action_result"
)

// AllChannels lists every channel directory the broker root must contain.
var AllChannels = []string{
	ChannelProtocols,
	ChannelStatus,
	ChannelVisualNavRequest,
	ChannelVisualNavResponse,
	ChannelVisualStateRequest,
	ChannelVisualStateResponse,
	ChannelVisualActionCmd,
	ChannelVisualActionResult,
}

// Message is the typed envelope placed on a broker channel.
// request_id 是跨进程关联的唯一凭据，发送方必须写入，接收方按此过滤。
type Message struct {
	MessageType MessageType     `json:"message_type"`
	RequestID   string          `json:"request_id"`
	TimestampMs int64           `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// Encode marshals payload into a Message of the given type/request id.
func Encode(msgType MessageType, requestID string, timestampMs int64, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		MessageType: msgType,
		RequestID:   requestID,
		TimestampMs: timestampMs,
		Payload:     raw,
	}, nil
}

// Decode unmarshals m.Payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// --- Payload shapes (§4.4 channel table) ---

// VisualNavRequest is sent Executor -> Planner when a visual_navigate
// action starts.
type VisualNavRequest struct {
	RequestID     string `json:"request_id"`
	Task          string `json:"task"`
	Goal          string `json:"goal"`
	MaxIterations int    `json:"max_iterations"`
}

// VisualNavResponse is the terminal message Planner -> Executor concluding
// the outer visual_navigate action.
type VisualNavResponse struct {
	RequestID        string `json:"request_id"`
	Status           string `json:"status"` // success | failed | timeout
	ActionsTaken     int    `json:"actions_taken"`
	FinalX           *int   `json:"final_x,omitempty"`
	FinalY           *int   `json:"final_y,omitempty"`
	Error            string `json:"error,omitempty"`
	Reason           string `json:"reason,omitempty"`
	LastReasoning    string `json:"last_reasoning,omitempty"`
}

// VisualStateRequest is sent Planner -> Executor to request a screenshot
// + mouse state snapshot.
type VisualStateRequest struct {
	RequestID string `json:"request_id"`
}

// VisualStateResponse carries the captured screen state.
type VisualStateResponse struct {
	RequestID      string `json:"request_id"`
	ScreenshotB64  string `json:"screenshot_b64"`
	MouseX         int    `json:"mouse_x"`
	MouseY         int    `json:"mouse_y"`
	ScreenW        int    `json:"screen_w"`
	ScreenH        int    `json:"screen_h"`
}

// VisualActionCmd is sent Planner -> Executor to perform one vision-loop step.
type VisualActionCmd struct {
	RequestID       string `json:"request_id"`
	Action          string `json:"action"`
	X               *int   `json:"x,omitempty"`
	Y               *int   `json:"y,omitempty"`
	Text            string `json:"text,omitempty"`
	RequestFollowup bool   `json:"request_followup"`
}

// VisualActionResult is sent Executor -> Planner after performing a
// visual action command.
type VisualActionResult struct {
	RequestID             string `json:"request_id"`
	Status                string `json:"status"` // success | failed
	Error                 string `json:"error,omitempty"`
	FollowupScreenshotB64 string `json:"followup_screenshot_b64,omitempty"`
	MouseX                int    `json:"mouse_x"`
	MouseY                int    `json:"mouse_y"`
}

// ProtocolStatus is the payload of the status channel — a serialized
// ExecutionResult (see internal/service/executor).
type ProtocolStatus struct {
	ProtocolID       string         `json:"protocol_id"`
	Status           string         `json:"status"`
	ActionsCompleted int            `json:"actions_completed"`
	ActionsTotal     int            `json:"actions_total"`
	DurationMs       int64          `json:"duration_ms"`
	StartedAtMs      int64          `json:"started_at"`
	FinishedAtMs     int64          `json:"finished_at"`
	Error            string         `json:"error,omitempty"`
	ErrorDetails     *ErrorDetails  `json:"error_details,omitempty"`
	ContextSnapshot  map[string]any `json:"context_snapshot,omitempty"`
}

// ErrorDetails describes the action that terminated a failed execution.
type ErrorDetails struct {
	ActionIndex int            `json:"action_index"`
	ActionName  string         `json:"action_name"`
	Params      map[string]any `json:"params,omitempty"`
	Kind        string         `json:"kind"`
	Trace       string         `json:"trace,omitempty"`
}
