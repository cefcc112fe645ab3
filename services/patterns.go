package services

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var patternsYAML []byte

// patternTables is the parsed form of patterns.yaml: per field, an ordered
// list of extractors where the first match wins. Keeping the tables in data
// rather than code keeps the extraction chain auditable and extensible.
type patternTables struct {
	Fragment map[string][]string `yaml:"fragment"`
	JSONKeys map[string][]string `yaml:"json_keys"`
}

type compiledTables struct {
	fragment map[string][]*regexp.Regexp
	jsonKeys map[string][]string
}

var tables = mustLoadTables()

func mustLoadTables() *compiledTables {
	var raw patternTables
	if err := yaml.Unmarshal(patternsYAML, &raw); err != nil {
		panic(fmt.Sprintf("services: parse patterns.yaml: %v", err))
	}

	compiled := &compiledTables{
		fragment: make(map[string][]*regexp.Regexp, len(raw.Fragment)),
		jsonKeys: raw.JSONKeys,
	}
	for field, patterns := range raw.Fragment {
		for _, p := range patterns {
			compiled.fragment[field] = append(compiled.fragment[field], regexp.MustCompile("(?is)"+p))
		}
	}
	return compiled
}

// extractFirst applies the ordered extractor list for field to the fragment.
// Patterns with a capture group yield the group, bare patterns the whole
// match.
func extractFirst(field, fragment string) string {
	for _, pattern := range tables.fragment[field] {
		m := pattern.FindStringSubmatch(fragment)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
		return m[0]
	}
	return ""
}
