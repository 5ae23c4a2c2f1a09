package readiness

import (
	"fmt"
	"strings"

	"github.com/tartil-app/offlinecache/internal/cachestats"
)

// Input is what a policy decides on.
type Input struct {
	Stats  cachestats.Stats
	Online bool
}

// Policy decides whether cached content is complete enough for offline use.
type Policy interface {
	Name() string
	Satisfied(in Input) bool
}

type minVerses int

// MinVerses is satisfied once at least n verses are cached.
func MinVerses(n int) Policy { return minVerses(n) }

func (p minVerses) Name() string            { return fmt.Sprintf("min-verses(%d)", int(p)) }
func (p minVerses) Satisfied(in Input) bool { return in.Stats.Verses >= int(p) }

type minAudio int

// MinAudio is satisfied once at least n audio recordings are cached.
func MinAudio(n int) Policy { return minAudio(n) }

func (p minAudio) Name() string            { return fmt.Sprintf("min-audio(%d)", int(p)) }
func (p minAudio) Satisfied(in Input) bool { return in.Stats.Audio >= int(p) }

type minBytes int64

// MinBytes is satisfied once the cache holds at least n bytes.
func MinBytes(n int64) Policy { return minBytes(n) }

func (p minBytes) Name() string            { return fmt.Sprintf("min-bytes(%d)", int64(p)) }
func (p minBytes) Satisfied(in Input) bool { return in.Stats.Size >= int64(p) }

type allOf []Policy

// AllOf is satisfied when every policy is. AllOf() is always satisfied.
func AllOf(policies ...Policy) Policy { return allOf(policies) }

func (p allOf) Name() string {
	names := make([]string, len(p))
	for i, q := range p {
		names[i] = q.Name()
	}
	return "all(" + strings.Join(names, ",") + ")"
}

func (p allOf) Satisfied(in Input) bool {
	for _, q := range p {
		if !q.Satisfied(in) {
			return false
		}
	}
	return true
}

type funcPolicy struct {
	name string
	fn   func(Input) bool
}

// Func builds a named policy from fn.
func Func(name string, fn func(Input) bool) Policy { return funcPolicy{name: name, fn: fn} }

func (p funcPolicy) Name() string            { return p.name }
func (p funcPolicy) Satisfied(in Input) bool { return p.fn(in) }
