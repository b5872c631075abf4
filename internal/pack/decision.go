package pack

// Action is what happened to one file during a build.
type Action string

const (
	ActionFull      Action = "full"
	ActionSummary   Action = "summary"
	ActionTruncated Action = "truncated"
	ActionSkipped   Action = "skipped"
	ActionMissing   Action = "missing"
	ActionExcluded  Action = "excluded"
)

// Decision records the outcome for one file.
type Decision struct {
	Path           string `json:"path"`
	Action         Action `json:"action"`
	Essential      bool   `json:"essential"`
	OriginalTokens int    `json:"original_tokens"`
	EmittedTokens  int    `json:"emitted_tokens"`
	RemainingAfter int    `json:"remaining_after"`
	Reason         string `json:"reason,omitempty"`
}
