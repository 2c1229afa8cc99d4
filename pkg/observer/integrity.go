package observer

import (
	"fmt"

	"github.com/qtilities/qtilities-go/pkg/subject"
)

// Provider is implemented by subjects that expose a child observer without
// being one.
type Provider interface {
	ChildObserver() *Observer
}

// Of returns the observer s is or provides, or nil.
func Of(s subject.Subject) *Observer {
	switch v := s.(type) {
	case *Observer:
		return v
	case Provider:
		return v.ChildObserver()
	default:
		return nil
	}
}

// checkCycle rejects attaching s to o when o is s, is provided by s, or is
// reachable from s through existing attach edges.
func (o *Observer) checkCycle(s subject.Subject) error {
	child := Of(s)
	if child == nil {
		return nil
	}
	if child == o {
		return fmt.Errorf("%w: %q into itself", ErrCycle, o.ObjectName())
	}
	found, err := reachable(child, o, o.manager.config.MaxWalkDepth)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %q is a descendant of %q", ErrCycle, o.ObjectName(), subject.Name(s))
	}
	return nil
}

// reachable reports whether target is reachable from the subjects of from.
// The walk is depth-first and bounded by maxDepth levels of nesting.
func reachable(from, target *Observer, maxDepth int) (bool, error) {
	visited := make(map[*Observer]bool)

	var walk func(obs *Observer, depth int) (bool, error)
	walk = func(obs *Observer, depth int) (bool, error) {
		if depth > maxDepth {
			return false, fmt.Errorf("%w: more than %d levels", ErrWalkDepth, maxDepth)
		}
		if visited[obs] {
			return false, nil
		}
		visited[obs] = true

		for _, e := range obs.edges {
			child := Of(e.subject)
			if child == nil {
				continue
			}
			if child == target {
				return true, nil
			}
			found, err := walk(child, depth+1)
			if err != nil || found {
				return found, err
			}
		}
		return false, nil
	}
	return walk(from, 1)
}
