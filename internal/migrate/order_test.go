package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alfredjeanlab/grapher/internal/store"
)

func noop(context.Context, store.Store) (int, error) { return 0, nil }

func step(name string, deps ...string) Step {
	return Step{Name: name, DependsOn: deps, Up: noop}
}

func names(steps []Step) string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name
	}
	return strings.Join(out, ",")
}

func TestOrder(t *testing.T) {
	for _, tc := range []struct {
		name  string
		steps []Step
		want  string
	}{
		{"Empty", nil, ""},
		{"Single", []Step{step("a")}, "a"},
		{"IndependentByName", []Step{step("c"), step("a"), step("b")}, "a,b,c"},
		{"DependencyFirst", []Step{step("0028", "0027"), step("0027")}, "0027,0028"},
		{"DependencyBeatsName", []Step{step("a", "z"), step("z")}, "z,a"},
		{"Diamond", []Step{step("d", "b", "c"), step("c", "a"), step("b", "a"), step("a")}, "a,b,c,d"},
		{"ReleasedStepsSortedWithReady", []Step{step("b"), step("c", "a"), step("a")}, "a,b,c"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Order(tc.steps)
			if err != nil {
				t.Fatalf("Order: %v", err)
			}
			if names(got) != tc.want {
				t.Errorf("Order = %s, want %s", names(got), tc.want)
			}
		})
	}
}

func TestOrder_Errors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		steps []Step
		want  error
	}{
		{"UnknownDependency", []Step{step("b", "a")}, ErrUnknownStep},
		{"Duplicate", []Step{step("a"), step("a")}, ErrDuplicateStep},
		{"EmptyName", []Step{step("")}, ErrUnknownStep},
		{"SelfCycle", []Step{step("a", "a")}, ErrCycle},
		{"Cycle", []Step{step("a", "c"), step("b", "a"), step("c", "b"), step("d")}, ErrCycle},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Order(tc.steps)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Order error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOrder_CycleNamesSteps(t *testing.T) {
	_, err := Order([]Step{step("a", "b"), step("b", "a"), step("c")})
	if err == nil || !strings.Contains(err.Error(), "a, b") {
		t.Fatalf("cycle error should name the stuck steps, got %v", err)
	}
}

func TestOrder_MissingUp(t *testing.T) {
	if _, err := Order([]Step{{Name: "a"}}); err == nil {
		t.Fatal("expected error for step without Up")
	}
}

func TestClosure(t *testing.T) {
	steps := []Step{step("a"), step("b", "a"), step("c", "b"), step("d")}
	want, err := closure(steps, "c")
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	if len(want) != 3 || !want["a"] || !want["b"] || !want["c"] {
		t.Errorf("closure(c) = %v", want)
	}
	if _, err := closure(steps, "nope"); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep, got %v", err)
	}
}
