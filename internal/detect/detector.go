// Package detect resolves a repository's technology stack from its
// working tree using a bundled rule set.
package detect

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "embed"

	"go.yaml.in/yaml/v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// Result is the detector output, normalized to the array tech-stack form.
type Result struct {
	TechStack       TechStack `json:"tech_stack"`
	PrimaryLanguage string    `json:"primary_language"`
	Framework       string    `json:"framework,omitempty"`
}

type languageRule struct {
	Name       string   `yaml:"name"`
	Extensions []string `yaml:"extensions"`
	Markers    []string `yaml:"markers"`
}

type frameworkRule struct {
	Name       string `yaml:"name"`
	Language   string `yaml:"language"`
	Dependency string `yaml:"dependency"`
	Marker     string `yaml:"marker"`
}

type ruleSet struct {
	Languages  []languageRule  `yaml:"languages"`
	Frameworks []frameworkRule `yaml:"frameworks"`
}

// Detector maps file evidence in a repository tree to a tech stack.
type Detector struct {
	rules ruleSet
	// maxFiles caps the walk so pathological trees don't stall a scan.
	maxFiles int
}

// NewDetector parses the embedded rule set.
func NewDetector() (*Detector, error) {
	var rs ruleSet
	if err := yaml.Unmarshal(rulesYAML, &rs); err != nil {
		return nil, fmt.Errorf("parsing detection rules: %w", err)
	}
	return &Detector{rules: rs, maxFiles: 20000}, nil
}

// DetectTechStack walks repoPath and returns the detected stack. An empty
// tree yields an empty (not nil) stack; an unreadable path is an error.
func (d *Detector) DetectTechStack(ctx context.Context, repoPath string) (*Result, error) {
	if _, err := os.Stat(repoPath); err != nil {
		return nil, fmt.Errorf("reading repository path: %w", err)
	}

	extCounts := make(map[string]int)
	markers := make(map[string]struct{})
	depFiles := make(map[string][]byte)

	seen := 0
	err := filepath.WalkDir(repoPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := entry.Name()
		if entry.IsDir() {
			if name == ".git" || name == "node_modules" || name == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		seen++
		if seen > d.maxFiles {
			return filepath.SkipAll
		}
		markers[name] = struct{}{}
		rel, _ := filepath.Rel(repoPath, path)
		markers[filepath.ToSlash(rel)] = struct{}{}
		if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
			extCounts[ext]++
		}
		switch name {
		case "package.json", "go.mod", "requirements.txt", "pyproject.toml", "Gemfile", "pom.xml", "build.gradle":
			if data, err := os.ReadFile(path); err == nil && len(data) < 1<<20 {
				depFiles[name] = data
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking repository tree: %w", err)
	}

	type scored struct {
		name  string
		count int
	}
	var detected []scored
	for _, rule := range d.rules.Languages {
		count := 0
		for _, ext := range rule.Extensions {
			count += extCounts[ext]
		}
		hasMarker := false
		for _, m := range rule.Markers {
			if _, ok := markers[m]; ok {
				hasMarker = true
				break
			}
		}
		if count == 0 && !hasMarker {
			continue
		}
		if hasMarker {
			count += 1000 // marker files outweigh raw extension counts
		}
		detected = append(detected, scored{name: rule.Name, count: count})
	}
	sort.SliceStable(detected, func(i, j int) bool { return detected[i].count > detected[j].count })

	res := &Result{TechStack: TechStack{}}
	for _, s := range detected {
		res.TechStack = append(res.TechStack, s.name)
	}
	if len(detected) > 0 {
		res.PrimaryLanguage = detected[0].name
	}
	res.Framework = d.detectFramework(res.PrimaryLanguage, markers, depFiles)
	if res.Framework != "" {
		res.TechStack = NormalizeTechStack(append([]string(res.TechStack), res.Framework))
	}
	return res, nil
}

// detectFramework checks framework rules against dependency manifests and
// marker paths for the primary language.
func (d *Detector) detectFramework(primary string, markers map[string]struct{}, depFiles map[string][]byte) string {
	for _, rule := range d.rules.Frameworks {
		if rule.Language != "" && !strings.EqualFold(rule.Language, primary) {
			// TypeScript projects match JavaScript framework rules too.
			if !(rule.Language == "JavaScript" && primary == "TypeScript") {
				continue
			}
		}
		if rule.Marker != "" {
			if _, ok := markers[rule.Marker]; ok {
				return rule.Name
			}
		}
		if rule.Dependency != "" {
			for _, data := range depFiles {
				if strings.Contains(string(data), rule.Dependency) {
					return rule.Name
				}
			}
		}
	}
	return ""
}
