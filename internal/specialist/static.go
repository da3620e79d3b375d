package specialist

import (
	"context"

	"github.com/antoniostano/tutorcore/internal/routing"
)

// StaticRegistry is a collaborator test double returning preconfigured
// chunk sequences per subject.
type StaticRegistry struct {
	Chunks map[routing.SubjectRoute][]string
	Err    error
}

func (r StaticRegistry) Open(ctx context.Context, subject routing.SubjectRoute, utterance string) (<-chan Delta, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	if subject == routing.SubjectEscalate {
		return staticStream(escalationMessage), nil
	}

	chunks := r.Chunks[subject]
	out := make(chan Delta, len(chunks))
	for _, c := range chunks {
		out <- Delta{Text: c}
	}
	close(out)
	return out, nil
}
