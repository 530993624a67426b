package detect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector()
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestDetectGoProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/demo\n\ngo 1.23\n")
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, dir, "util.js", "// stray helper\n")

	res, err := newDetector(t).DetectTechStack(context.Background(), dir)
	if err != nil {
		t.Fatalf("DetectTechStack: %v", err)
	}
	if res.PrimaryLanguage != "Go" {
		t.Fatalf("primary = %q, want Go", res.PrimaryLanguage)
	}
	if !res.TechStack.Contains("Go") {
		t.Fatalf("stack %v missing Go", res.TechStack)
	}
	if res.Framework != "" {
		t.Fatalf("framework = %q, want none", res.Framework)
	}
}

func TestDetectMarkerOutweighsExtensionCount(t *testing.T) {
	dir := t.TempDir()
	// Lots of shell scripts, but the manifest says Python.
	for i := 0; i < 5; i++ {
		writeFile(t, dir, filepath.Join("scripts", string(rune('a'+i))+".sh"), "echo hi\n")
	}
	writeFile(t, dir, "requirements.txt", "flask==3.0\n")
	writeFile(t, dir, "app.py", "print('hi')\n")

	res, err := newDetector(t).DetectTechStack(context.Background(), dir)
	if err != nil {
		t.Fatalf("DetectTechStack: %v", err)
	}
	if res.PrimaryLanguage != "Python" {
		t.Fatalf("primary = %q, want Python", res.PrimaryLanguage)
	}
	if !res.TechStack.Contains("Shell") {
		t.Fatalf("stack %v should still list Shell", res.TechStack)
	}
}

func TestDetectFrameworkFromDependencyManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"dependencies":{"react":"^18.0.0"}}`)
	writeFile(t, dir, "index.js", "console.log('hi')\n")

	res, err := newDetector(t).DetectTechStack(context.Background(), dir)
	if err != nil {
		t.Fatalf("DetectTechStack: %v", err)
	}
	if res.PrimaryLanguage != "JavaScript" {
		t.Fatalf("primary = %q, want JavaScript", res.PrimaryLanguage)
	}
	if res.Framework != "React" {
		t.Fatalf("framework = %q, want React", res.Framework)
	}
	if !res.TechStack.Contains("React") {
		t.Fatalf("stack %v missing framework entry", res.TechStack)
	}
}

func TestDetectFrameworkFromMarkerPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "manage.py", "# django entry\n")
	writeFile(t, dir, "app/views.py", "pass\n")

	res, err := newDetector(t).DetectTechStack(context.Background(), dir)
	if err != nil {
		t.Fatalf("DetectTechStack: %v", err)
	}
	if res.Framework != "Django" {
		t.Fatalf("framework = %q, want Django", res.Framework)
	}
}

func TestDetectEmptyTreeYieldsEmptyStack(t *testing.T) {
	res, err := newDetector(t).DetectTechStack(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("DetectTechStack: %v", err)
	}
	if res.TechStack == nil {
		t.Fatal("stack should be empty, not nil")
	}
	if len(res.TechStack) != 0 {
		t.Fatalf("stack = %v, want empty", res.TechStack)
	}
	if res.PrimaryLanguage != "" {
		t.Fatalf("primary = %q, want empty", res.PrimaryLanguage)
	}
}

func TestDetectMissingPathIsAnError(t *testing.T) {
	_, err := newDetector(t).DetectTechStack(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestDetectSkipsVendorTrees(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "go.mod", "module example.com/demo\n")
	writeFile(t, dir, "node_modules/react/package.json", `{"name":"react"}`)
	writeFile(t, dir, "node_modules/react/index.js", "module.exports = {}\n")

	res, err := newDetector(t).DetectTechStack(context.Background(), dir)
	if err != nil {
		t.Fatalf("DetectTechStack: %v", err)
	}
	if res.TechStack.Contains("JavaScript") {
		t.Fatalf("stack %v should ignore node_modules", res.TechStack)
	}
}
