package domain

import (
	"falken/testutil"
	"testing"
)

// TestDomainDoesNotImportInternal keeps the binding core free of adapters and
// infrastructure so every consumer can embed it.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "pkg/domain must not depend on internal packages")
}

func TestDomainLogsThroughDiag(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.StdlibLogForbidden, "pkg/domain reports through pkg/diag")
}
