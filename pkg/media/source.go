package media

import "context"

// Media is a handle exclusively owned by one session. Close frees the underlying resource
// and is safe to call more than once.
type Media interface {
	Descriptor() Descriptor
	Close() error
}

// Source opens media for a session of the matching kind.
type Source interface {
	Kind() Kind
	Open(ctx context.Context) (Media, error)
}
