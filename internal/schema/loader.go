// Package schema loads brain schemas from Lua scripts. Scripts run once in a
// sandboxed VM that is discarded after loading; only the resulting
// domain.BrainSchema values survive.
package schema

import (
	"falken/pkg/domain"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// collector accumulates Brain declarations during script execution.
type collector struct {
	brains []domain.BrainSchema
}

func newVM(coll *collector) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	registerAPI(L, coll)
	return L
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes globals that reach outside the script.
func sandbox(L *lua.LState) {
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage", "print",
	} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Load executes every .lua file in dir in alphabetical order and returns the
// declared brains in declaration order.
func Load(dir string) ([]domain.BrainSchema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading schema directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}
	sort.Strings(files)

	coll := &collector{}
	L := newVM(coll)
	defer L.Close()
	for _, f := range files {
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}
	return coll.finish()
}

// LoadFile executes a single script.
func LoadFile(path string) ([]domain.BrainSchema, error) {
	coll := &collector{}
	L := newVM(coll)
	defer L.Close()
	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("executing %s: %w", filepath.Base(path), err)
	}
	return coll.finish()
}

// LoadString executes src; name is used in error messages.
func LoadString(name, src string) ([]domain.BrainSchema, error) {
	coll := &collector{}
	L := newVM(coll)
	defer L.Close()
	fn, err := L.Load(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("executing %s: %w", name, err)
	}
	return coll.finish()
}

// finish validates every collected brain.
func (c *collector) finish() ([]domain.BrainSchema, error) {
	if len(c.brains) == 0 {
		return nil, fmt.Errorf("no brain declared")
	}
	seen := make(map[string]bool, len(c.brains))
	for _, b := range c.brains {
		if seen[b.Name] {
			return nil, fmt.Errorf("brain %q declared twice", b.Name)
		}
		seen[b.Name] = true
		if err := domain.ValidateBrainSchema(b); err != nil {
			return nil, fmt.Errorf("brain %q: %w", b.Name, err)
		}
	}
	return c.brains, nil
}

// Find returns the brain called name.
func Find(brains []domain.BrainSchema, name string) (domain.BrainSchema, bool) {
	for _, b := range brains {
		if b.Name == name {
			return b, true
		}
	}
	return domain.BrainSchema{}, false
}
