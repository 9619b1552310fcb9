package conformance

import "gopkg.in/yaml.v3"

// Suite is one YAML test file.
type Suite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Tests       []Case `yaml:"tests"`
}

// Case is a single scenario: a generator definition, how to drive it and
// what it must produce.
type Case struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Skip        any    `yaml:"skip,omitempty"` // bool or reason

	// Generator is decoded with gendef.
	Generator yaml.Node `yaml:"generator"`

	// Limit caps the values taken per iteration. Zero drains.
	Limit int `yaml:"limit,omitempty"`
	// DisposeAfter disposes the generator once this many values were
	// taken. Zero disposes before the first step.
	DisposeAfter *int `yaml:"dispose_after,omitempty"`
	// Iterations runs the tree's value this many times, which starts fresh
	// iterators for restartable definitions. Defaults to one.
	Iterations int `yaml:"iterations,omitempty"`

	Expect Expectation `yaml:"expect"`
}

// Expectation describes the outcome of a case. Unset fields are not
// checked.
type Expectation struct {
	Values []any `yaml:"values,omitempty"`
	Log    []any `yaml:"log,omitempty"`
	States int   `yaml:"states,omitempty"`

	// Error is the error kind, such as yield_in_filter or uncaught.
	Error string `yaml:"error,omitempty"`
	// Path is the dotted node path of the first reported error.
	Path string `yaml:"path,omitempty"`
	// Exception is the class of an uncaught exception.
	Exception string `yaml:"exception,omitempty"`
}

// IsSkipped reports whether the case should be skipped and why.
func (c *Case) IsSkipped() (bool, string) {
	switch v := c.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
	case string:
		return true, v
	}
	return false, ""
}
