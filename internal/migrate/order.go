package migrate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownStep   = errors.New("unknown step")
	ErrDuplicateStep = errors.New("duplicate step")
	ErrCycle         = errors.New("dependency cycle")
)

// Order validates steps and returns them in dependency order. Steps that
// become ready at the same time are ordered by name.
func Order(steps []Step) ([]Step, error) {
	byName := make(map[string]Step, len(steps))
	for _, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("step with empty name: %w", ErrUnknownStep)
		}
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("%s: %w", s.Name, ErrDuplicateStep)
		}
		if s.Up == nil {
			return nil, fmt.Errorf("step %s has no Up function", s.Name)
		}
		byName[s.Name] = s
	}

	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for _, s := range steps {
		indegree[s.Name] = len(s.DependsOn)
		for _, dep := range s.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("step %s depends on %s: %w", s.Name, dep, ErrUnknownStep)
			}
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}

	var ready []string
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]Step, 0, len(steps))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])

		var released []string
		for _, d := range dependents[name] {
			indegree[d]--
			if indegree[d] == 0 {
				released = append(released, d)
			}
		}
		if len(released) > 0 {
			ready = append(ready, released...)
			sort.Strings(ready)
		}
	}

	if len(ordered) != len(steps) {
		var stuck []string
		for name, n := range indegree {
			if n > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w among %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return ordered, nil
}

// closure returns the names of target and everything it transitively
// depends on.
func closure(steps []Step, target string) (map[string]bool, error) {
	byName := make(map[string]Step, len(steps))
	for _, s := range steps {
		byName[s.Name] = s
	}
	if _, ok := byName[target]; !ok {
		return nil, fmt.Errorf("target %s: %w", target, ErrUnknownStep)
	}

	want := make(map[string]bool)
	stack := []string{target}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if want[name] {
			continue
		}
		want[name] = true
		stack = append(stack, byName[name].DependsOn...)
	}
	return want, nil
}
