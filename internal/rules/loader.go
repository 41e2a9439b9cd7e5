package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// LoadError reports one rule file that failed to load or validate. Other
// files in the same directory are unaffected.
type LoadError struct {
	Path   string
	Reason error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// LoadDir reads every *.yaml/*.yml file in dir as a Rule, validating each
// with go-playground/validator. A directory containing no rule files is not
// an error; it simply yields an empty catalogue. A file that fails to parse
// or validate is skipped and reported in the returned []LoadError; the rest
// of the directory still loads. Only a directory-read failure (missing or
// unreadable dir) is returned as the error return value.
func LoadDir(dir string) ([]Rule, []LoadError, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("rules: reading rule directory %s: %w", dir, err)
	}

	var out []Rule
	var failures []LoadError
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		rule, err := loadFile(path)
		if err != nil {
			failures = append(failures, LoadError{Path: path, Reason: err})
			continue
		}
		out = append(out, rule)
	}

	return out, failures, nil
}

func loadFile(path string) (Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rule{}, fmt.Errorf("rules: reading rule file %s: %w", path, err)
	}

	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return Rule{}, fmt.Errorf("rules: parsing rule file %s: %w", path, err)
	}

	if !rule.Level.IsValid() {
		return Rule{}, fmt.Errorf("rules: rule file %s: invalid level %q", path, rule.Level)
	}
	if rule.Detection.Condition == "" {
		rule.Detection.Condition = "selection"
	}

	if err := validate.Struct(rule); err != nil {
		return Rule{}, fmt.Errorf("rules: rule file %s failed validation: %w", path, err)
	}

	return rule, nil
}

// GroupByAccount partitions a flat rule slice by account_id, the shape
// Engine.LoadRules takes.
func GroupByAccount(rules []Rule) map[string][]Rule {
	byAcct := make(map[string][]Rule)
	for _, r := range rules {
		byAcct[r.AccountID] = append(byAcct[r.AccountID], r)
	}
	return byAcct
}
