package testutil

import "testing"

// Given, When and Then nest each step as a named subtest.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}

// Scenario narrates a multi-step flow inline on one test. Steps do not
// start subtests, so assertions bound to the enclosing suite's T keep
// working; each step is logged so a failure shows how far the flow got.
type Scenario struct {
	t    testing.TB
	name string
}

func NewScenario(t testing.TB, name string) *Scenario {
	t.Helper()
	t.Logf("Scenario: %s", name)
	return &Scenario{t: t, name: name}
}

func (s *Scenario) Given(desc string, fn func()) *Scenario {
	s.t.Helper()
	return s.step("Given", desc, fn)
}

func (s *Scenario) When(desc string, fn func()) *Scenario {
	s.t.Helper()
	return s.step("When", desc, fn)
}

func (s *Scenario) Then(desc string, fn func()) *Scenario {
	s.t.Helper()
	return s.step("Then", desc, fn)
}

func (s *Scenario) step(keyword, desc string, fn func()) *Scenario {
	s.t.Helper()
	if s.t.Failed() {
		s.t.Logf("%s: skipping %s %s after an earlier failure", s.name, keyword, desc)
		return s
	}
	s.t.Logf("%s: %s %s", s.name, keyword, desc)
	fn()
	return s
}
