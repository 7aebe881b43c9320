package blob

import (
	"slices"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// importRule confines imports of a path prefix to the packages under owner.
type importRule struct {
	guarded string
	owners  []string
}

func (r importRule) owns(pkgPath string) bool {
	for _, o := range r.owners {
		if pkgPath == o || strings.HasPrefix(pkgPath, o+"/") {
			return true
		}
	}
	return false
}

func (r importRule) matches(importPath string) bool {
	return importPath == r.guarded || strings.HasPrefix(importPath, r.guarded+"/")
}

// TestArtifactDriversStayBehindFacade keeps the exporter and the tools on
// blob.Store: only this package reaches the drivers, and only the s3 driver
// talks to the AWS SDK.
func TestArtifactDriversStayBehindFacade(t *testing.T) {
	rules := []importRule{
		{guarded: "falken/internal/infra/blob", owners: []string{"falken/internal/blob", "falken/internal/infra/blob"}},
		{guarded: "github.com/aws/aws-sdk-go-v2", owners: []string{"falken/internal/infra/blob/s3"}},
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "falken/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	var violations []string
	for _, pkg := range pkgs {
		path := strings.TrimSuffix(strings.TrimSuffix(pkg.PkgPath, ".test"), "_test")
		for importPath := range pkg.Imports {
			for _, rule := range rules {
				if rule.matches(importPath) && !rule.owns(path) {
					violations = append(violations, pkg.PkgPath+" imports "+importPath)
				}
			}
		}
	}
	if len(violations) == 0 {
		return
	}
	slices.Sort(violations)
	violations = slices.Compact(violations)
	t.Fatalf("artifact drivers imported outside the blob facade:\n  %s", strings.Join(violations, "\n  "))
}
