package social

import "context"

// Verdict is the moderator's decision on a piece of user text.
type Verdict struct {
	Safe   bool
	Reason string
}

// Moderator screens free text before it is stored.
type Moderator interface {
	Validate(ctx context.Context, input string) (Verdict, error)
}

// AllowAll accepts everything.
type AllowAll struct{}

func (AllowAll) Validate(context.Context, string) (Verdict, error) {
	return Verdict{Safe: true}, nil
}
