package testutil

import "testing"

// step runs fn as a subtest named "<keyword> <desc>". Nesting Given, When and
// Then keeps scenario names readable in go test -v output.
func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+desc, fn)
}

func Given(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "Given", desc, fn) }

func When(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "When", desc, fn) }

func Then(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "Then", desc, fn) }

// And continues the previous step.
func And(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "And", desc, fn) }
