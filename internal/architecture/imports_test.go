package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
)

// layerRule forbids packages under dir from importing any of the listed
// internal prefixes.
type layerRule struct {
	dir    string
	denied []string
}

var layerRules = []layerRule{
	{dir: "internal/domain/", denied: []string{"platform/", "data/", "modules/", "http/", "observability", "app"}},
	{dir: "internal/pkg/", denied: []string{"domain", "platform/", "data/", "modules/", "http/", "observability", "app"}},
	{dir: "internal/platform/", denied: []string{"data/", "modules/", "http/", "observability", "app"}},
	{dir: "internal/data/", denied: []string{"modules/", "http/", "observability", "app"}},
	{dir: "internal/modules/", denied: []string{"http/", "observability", "app"}},
	{dir: "internal/http/", denied: []string{"data/", "app"}},
	{dir: "internal/observability/", denied: []string{"data/", "modules/", "http/", "app"}},
}

func TestImportBoundaries(t *testing.T) {
	root, modulePath := moduleRoot(t)

	var violations []string
	walkImports(t, root, func(rel, imp string) {
		inner, ok := strings.CutPrefix(imp, modulePath+"/internal/")
		if !ok {
			return
		}
		for _, rule := range layerRules {
			if !strings.HasPrefix(rel, rule.dir) {
				continue
			}
			for _, d := range rule.denied {
				if strings.HasPrefix(inner, d) {
					violations = append(violations, fmt.Sprintf("%s imports %s (%s must not depend on internal/%s)", rel, imp, rule.dir, d))
				}
			}
		}
	})
	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("import boundary violations:\n- %s", strings.Join(violations, "\n- "))
	}
}

func TestNothingImportsCmd(t *testing.T) {
	root, modulePath := moduleRoot(t)
	walkImports(t, root, func(rel, imp string) {
		if strings.HasPrefix(imp, modulePath+"/cmd") {
			t.Errorf("%s imports entrypoint package %s", rel, imp)
		}
	})
}

// walkImports calls fn for every import of every .go file under internal/.
func walkImports(t *testing.T, root string, fn func(rel, imp string)) {
	t.Helper()
	fset := token.NewFileSet()
	err := filepath.WalkDir(filepath.Join(root, "internal"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, is := range f.Imports {
			if imp, err := strconv.Unquote(is.Path.Value); err == nil {
				fn(rel, imp)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk internal/: %v", err)
	}
}

func moduleRoot(t *testing.T) (string, string) {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		gomod := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(gomod); err == nil {
			mp, err := modulePathOf(gomod)
			if err != nil {
				t.Fatalf("read module path: %v", err)
			}
			return dir, mp
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found")
		}
		dir = parent
	}
}

func modulePathOf(goMod string) (string, error) {
	f, err := os.Open(goMod)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if mp, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "module "); ok {
			return strings.TrimSpace(mp), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module directive not found in %s", goMod)
}
