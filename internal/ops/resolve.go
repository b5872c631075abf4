package ops

import (
	"strings"

	"github.com/hpungsan/ctxpack/internal/errors"
)

// ResolveEssentialsOutput lists a task's essential files.
type ResolveEssentialsOutput struct {
	Task  string   `json:"task"`
	Known bool     `json:"known"`
	Run   string   `json:"run,omitempty"`
	Files []string `json:"files"`
}

// ResolveEssentials expands the task's path templates. Unknown tasks yield an
// empty list, not an error.
func ResolveEssentials(p *Project, input TaskInput) (*ResolveEssentialsOutput, error) {
	task := strings.TrimSpace(input.Task)
	if task == "" {
		return nil, errors.NewInvalidRequest("task is required")
	}
	if err := validateRun(input.Run); err != nil {
		return nil, err
	}
	params := p.params(input)
	return &ResolveEssentialsOutput{
		Task:  task,
		Known: p.Resolver.Known(task),
		Run:   params.LatestRun,
		Files: p.Resolver.Resolve(task, params),
	}, nil
}
