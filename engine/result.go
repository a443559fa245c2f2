package engine

import (
	"time"

	"github.com/hupe1980/agentforge/core"
)

// Status is the terminal disposition of an execution.
type Status string

const (
	// StatusCompleted means the model produced a final answer within the
	// iteration budget.
	StatusCompleted Status = "completed"
	// StatusMaxIterations means the iteration budget ran out before the model
	// stopped requesting tools.
	StatusMaxIterations Status = "max_iterations_reached"
	// StatusFailed means a provider error or cancellation ended the run.
	StatusFailed Status = "failed"
)

// ToolResult is one tool dispatch outcome within a step. Error holds the
// normalized failure text when the call did not succeed; Output is empty in
// that case.
type ToolResult struct {
	ToolName string `json:"tool_name"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Step is one model turn: the assistant content, the tool calls it requested
// and the observations produced for them.
type Step struct {
	Index       int             `json:"index"`
	Content     string          `json:"content,omitempty"`
	ToolCalls   []core.ToolCall `json:"tool_calls,omitempty"`
	ToolResults []ToolResult    `json:"tool_results,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Result is the complete record of one execution. Exactly one Result is
// produced per run regardless of outcome.
type Result struct {
	AgentID       string          `json:"agent_id"`
	SessionID     string          `json:"session_id,omitempty"`
	FinalResponse string          `json:"final_response"`
	Steps         []Step          `json:"steps"`
	Status        Status          `json:"status"`
	Usage         core.TokenUsage `json:"token_usage"`
	Duration      time.Duration   `json:"duration"`
	ErrorKind     string          `json:"error_kind,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}
