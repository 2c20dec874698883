package models

// Executor roles the supervisor can delegate to. "reporter" is terminal and
// carries no bound capabilities.
const (
	RoleImageExecutor   = "image_executor"
	RoleVideoExecutor   = "video_executor"
	RoleGeneralExecutor = "general_executor"
	RoleReporter        = "reporter"

	// Finish is the supervisor's end-of-plan decision, not a role.
	Finish = "FINISH"
)

// TeamMembers is the default set of delegable roles, in routing order.
var TeamMembers = []string{RoleImageExecutor, RoleVideoExecutor, RoleGeneralExecutor, RoleReporter}

// SupervisorOptions is everything a supervisor decision may legally contain.
var SupervisorOptions = append(append([]string{}, TeamMembers...), Finish)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one capability-invocation request carried on a message.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message is one entry in the conversation history.
type Message struct {
	Role      Role       `json:"role"`
	Name      string     `json:"name,omitempty"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Reference is one piece of user-supplied or auto-loaded source material.
type Reference struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Step is one planned unit of work.
type Step struct {
	Executor    string `json:"executor"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DependsOn   []int  `json:"depends_on,omitempty"`
	Note        string `json:"note,omitempty"`
}

// Plan is the planner's validated output, immutable once committed.
type Plan struct {
	Thought string `json:"thought"`
	Title   string `json:"title"`
	Steps   []Step `json:"steps"`
}

type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

// StepResult records the outcome of one executor invocation.
type StepResult struct {
	StepIndex int        `json:"step_index"`
	Executor  string     `json:"executor"`
	Status    StepStatus `json:"status"`
	TaskID    string     `json:"task_id,omitempty"`
	ResultURL string     `json:"result_url,omitempty"`
	Summary   string     `json:"summary"`
}

// TaskSnapshot captures the most recently created async job: its identifier,
// the capability that created it, and the exact arguments used, so a retry
// can reproduce the call with a fresh seed.
type TaskSnapshot struct {
	TaskID   string         `json:"task_id"`
	ToolName string         `json:"tool_name"`
	Config   map[string]any `json:"config,omitempty"`
}
