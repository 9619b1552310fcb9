package conformance

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TestDir holds the suites shipped with the module, relative to this
// package.
const TestDir = "testdata"

// Loaded is a case together with its suite and source file.
type Loaded struct {
	File  string
	Suite *Suite
	Case  Case
}

// LoadDir loads every .yaml suite under dir in lexical file order.
func LoadDir(dir string) ([]Loaded, error) {
	var loaded []Loaded
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		cases, err := LoadFile(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", rel, err)
		}
		for i := range cases {
			cases[i].File = rel
		}
		loaded = append(loaded, cases...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

// LoadFile loads the cases of one suite.
func LoadFile(path string) ([]Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, err
	}
	if suite.Name == "" {
		return nil, fmt.Errorf("suite has no name")
	}

	cases := make([]Loaded, 0, len(suite.Tests))
	for _, c := range suite.Tests {
		cases = append(cases, Loaded{
			File:  filepath.Base(path),
			Suite: &suite,
			Case:  c,
		})
	}
	return cases, nil
}
