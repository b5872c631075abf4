package ops

import (
	"github.com/hpungsan/ctxpack/internal/docs"
	"github.com/hpungsan/ctxpack/internal/errors"
)

// FindDocsOutput lists documentation candidates for update-doc.
type FindDocsOutput struct {
	Docs []docs.Doc `json:"docs"`
}

// FindDocs lists README, CHANGELOG and docs/**/*.md under the project root.
func FindDocs(p *Project) (*FindDocsOutput, error) {
	found, err := docs.Find(p.Layout.Root)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if found == nil {
		found = []docs.Doc{}
	}
	return &FindDocsOutput{Docs: found}, nil
}
