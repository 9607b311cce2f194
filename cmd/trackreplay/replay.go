package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kolkov/trackvec/track"
)

// Failure is one unmet expectation or failed step.
type Failure struct {
	Scenario string
	Step     int
	Op       string
	Message  string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: step %d (%s): %s", f.Scenario, f.Step, f.Op, f.Message)
}

// Result aggregates the outcome of one or more scenarios.
type Result struct {
	Scenarios int
	Steps     int
	Failures  []Failure
}

// Merge adds other into r.
func (r *Result) Merge(other Result) {
	r.Scenarios += other.Scenarios
	r.Steps += other.Steps
	r.Failures = append(r.Failures, other.Failures...)
}

// OK reports whether every expectation held.
func (r Result) OK() bool {
	return len(r.Failures) == 0
}

// errAborted marks a step whose failure leaves the vector in an unknown
// state; the rest of the scenario is skipped.
var errAborted = errors.New("scenario aborted")

// ReplayFile replays every scenario of f, each against its own vector.
func ReplayFile(f *File, opts track.Options) Result {
	var res Result
	for _, s := range f.Scenarios {
		res.Merge(Replay(s, opts))
	}
	return res
}

// Replay runs one scenario against a fresh Vector[int].
func Replay(s Scenario, opts track.Options) Result {
	r := &replayer{
		v:       track.NewWithOptions[int](opts),
		handles: make(map[string]track.Handle[int]),
	}
	if s.Reserve > 0 {
		r.v.Reserve(s.Reserve)
	}
	r.v.Append(s.Init...)

	res := Result{Scenarios: 1}
	for i, st := range s.Steps {
		res.Steps++
		err := r.step(st)
		if err == nil {
			continue
		}
		res.Failures = append(res.Failures, Failure{
			Scenario: s.Name,
			Step:     i,
			Op:       st.Op,
			Message:  err.Error(),
		})
		if errors.Is(err, errAborted) {
			break
		}
	}
	return res
}

type replayer struct {
	v       *track.Vector[int]
	handles map[string]track.Handle[int]
}

// step applies st. Container panics (bad index, destroyed vector) abort the
// scenario.
func (r *replayer) step(st Step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", errAborted, p)
		}
	}()

	switch st.Op {
	case "bind":
		r.handles[st.Name] = r.v.HandleAt(*st.Index)
	case "cursor":
		r.handles[st.Name] = r.v.HandleFor(r.v.Begin().Add(*st.Index))
	case "derive":
		parent, err := r.handle(st.From)
		if err != nil {
			return err
		}
		h, err := track.Derive(parent, func(p *int) *int { return p })
		if err != nil {
			return fmt.Errorf("derive from %s: %w", st.From, err)
		}
		r.handles[st.Name] = h
	case "append":
		r.v.Append(st.values()...)
	case "insert":
		r.v.Insert(*st.Index, st.values()...)
	case "erase":
		r.v.Erase(*st.Index)
	case "set":
		r.v.Set(*st.Index, *st.Value)
	case "store":
		h, err := r.handle(st.Name)
		if err != nil {
			return err
		}
		if !h.Store(*st.Value) {
			return fmt.Errorf("store through %s: %w", st.Name, track.ErrStaleAccess)
		}
	case "clear":
		r.v.Clear()
	case "resize":
		r.v.Resize(*st.Count)
	case "reserve":
		r.v.Reserve(*st.Count)
	case "destroy":
		r.v.Destroy()
	case "expect":
		return r.expect(st)
	default:
		return fmt.Errorf("%w: unknown op %q", errAborted, st.Op)
	}
	return nil
}

func (r *replayer) handle(name string) (track.Handle[int], error) {
	h, ok := r.handles[name]
	if !ok {
		return track.Handle[int]{}, fmt.Errorf("unknown handle %q", name)
	}
	return h, nil
}

// expect checks every field set on st and reports all mismatches at once.
func (r *replayer) expect(st Step) error {
	var mismatches []string

	if st.Name != "" {
		h, err := r.handle(st.Name)
		if err != nil {
			return err
		}
		if st.Valid != nil {
			if got := h.Valid(); got != *st.Valid {
				mismatches = append(mismatches, fmt.Sprintf("%s valid = %t, want %t", st.Name, got, *st.Valid))
			}
		}
		if st.Value != nil {
			got, ok := h.Load()
			switch {
			case !ok:
				mismatches = append(mismatches, fmt.Sprintf("%s is dangling, want value %d", st.Name, *st.Value))
			case got != *st.Value:
				mismatches = append(mismatches, fmt.Sprintf("%s value = %d, want %d", st.Name, got, *st.Value))
			}
		}
	}

	if st.Len != nil {
		if got := r.v.Len(); got != *st.Len {
			mismatches = append(mismatches, fmt.Sprintf("len = %d, want %d", got, *st.Len))
		}
	}
	if st.Cap != nil {
		if got := r.v.Cap(); got != *st.Cap {
			mismatches = append(mismatches, fmt.Sprintf("cap = %d, want %d", got, *st.Cap))
		}
	}

	if len(mismatches) > 0 {
		return errors.New(strings.Join(mismatches, "; "))
	}
	return nil
}
