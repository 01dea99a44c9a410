package stepup

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/dashsync"
)

// Guarded is a mutation reachable only through the gate.
type Guarded[P any] struct {
	g    *Gate
	kind string
}

// Guard registers m under its name and returns the challenge-opening front.
func Guard[P, R any](g *Gate, m *dashsync.Mutation[P, R]) *Guarded[P] {
	kind := m.Name()
	g.Register(kind, func(ctx context.Context, payload any) error {
		p, ok := payload.(P)
		if !ok {
			return fmt.Errorf("stepup: %s: payload is %T", kind, payload)
		}
		_, err := m.Mutate(ctx, p)
		return err
	})
	return &Guarded[P]{g: g, kind: kind}
}

func (gm *Guarded[P]) Kind() string { return gm.kind }

// Mutate opens a challenge for payload. The write happens on a successful Submit.
func (gm *Guarded[P]) Mutate(payload P) (Request, error) {
	return gm.g.Open(gm.kind, payload)
}
