package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NoScenariosError is returned when a scenario directory holds no
// matching scenario files.
type NoScenariosError struct {
	Dir    string
	Filter string
}

// Error implements the error interface.
func (e *NoScenariosError) Error() string {
	if e.Filter != "" {
		return fmt.Sprintf("no scenarios matching %q in %s", e.Filter, e.Dir)
	}
	return fmt.Sprintf("no scenarios in %s", e.Dir)
}

// DiscoverScenarios lists the .yaml and .yml files under dir, recursively,
// in lexical order. A non-empty filter is a glob matched against the file
// name without extension.
func DiscoverScenarios(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scenario directory: %s is not a directory", dir)
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("bad filter %q: %w", filter, err)
		}
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, &NoScenariosError{Dir: dir, Filter: filter}
	}
	return paths, nil
}

// SuiteResult summarizes a batch of scenario runs.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure records one scenario that did not pass.
type SuiteFailure struct {
	Path     string `json:"path"`
	Scenario string `json:"scenario,omitempty"`
	Error    string `json:"error"`
}

// RunSuite loads and runs every scenario path. Load and execution errors
// count as failures; the suite itself only fails on a cancelled context.
func RunSuite(ctx context.Context, paths []string) (*SuiteResult, error) {
	result := &SuiteResult{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, SuiteFailure{
				Path:  path,
				Error: fmt.Sprintf("failed to load scenario: %v", err),
			})
			continue
		}

		runResult, err := RunContext(ctx, scenario)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, SuiteFailure{
				Path:     path,
				Scenario: scenario.Name,
				Error:    fmt.Sprintf("scenario execution failed: %v", err),
			})
			continue
		}

		if !runResult.Pass {
			result.Failed++
			result.Failures = append(result.Failures, SuiteFailure{
				Path:     path,
				Scenario: scenario.Name,
				Error:    fmt.Sprintf("scenario assertions failed: %v", runResult.Errors),
			})
			continue
		}

		result.Passed++
	}

	return result, nil
}
