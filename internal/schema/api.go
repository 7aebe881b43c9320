package schema

import (
	"falken/pkg/domain"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

type entityRole int

const (
	roleGlobal entityRole = iota
	rolePlayer
	roleCamera
)

// entityDecl is the userdata value produced by Player, Camera and Entity.
type entityDecl struct {
	role   entityRole
	schema domain.EntitySchema
}

// registerAPI installs the schema constructors as globals:
//
//	Brain "name" { player = Player {...}, camera = Camera {...},
//	               globals = { Entity "goal" {...} }, actions = {...} }
//	Number "health" { min = 0, max = 100, clamp = true }
//	Categorical "tool" { "hammer", "saw" }
//	Bool "jump"
//	Position "target" {}
//	Rotation "facing" {}
//	Feelers "sight" { count = 3, length = 10, fov = 1.2, thickness = 0.2, ids = { "wall" } }
//	Joystick "move" { mode = "direction_xz", entity = "player", frame = "camera" }
func registerAPI(L *lua.LState, coll *collector) {
	registerField(L, "Number", func(L *lua.LState, name string, opts *lua.LTable) (domain.FieldSpec, error) {
		lo, hi := getNumber(opts, "min", 0), getNumber(opts, "max", 0)
		return domain.NumberField(name, float32(lo), float32(hi)), nil
	})
	registerField(L, "Categorical", func(L *lua.LState, name string, opts *lua.LTable) (domain.FieldSpec, error) {
		cats, err := stringList(opts)
		if err != nil {
			return domain.FieldSpec{}, err
		}
		return domain.CategoricalField(name, cats...), nil
	})
	registerField(L, "Bool", func(L *lua.LState, name string, _ *lua.LTable) (domain.FieldSpec, error) {
		return domain.BoolField(name), nil
	})
	registerField(L, "Position", func(L *lua.LState, name string, _ *lua.LTable) (domain.FieldSpec, error) {
		return domain.PositionField(name), nil
	})
	registerField(L, "Rotation", func(L *lua.LState, name string, _ *lua.LTable) (domain.FieldSpec, error) {
		return domain.RotationField(name), nil
	})
	registerField(L, "Feelers", func(L *lua.LState, name string, opts *lua.LTable) (domain.FieldSpec, error) {
		var ids []string
		if t := getTable(opts, "ids"); t != nil {
			var err error
			if ids, err = stringList(t); err != nil {
				return domain.FieldSpec{}, fmt.Errorf("ids: %w", err)
			}
		}
		return domain.FeelersField(name,
			int(getNumber(opts, "count", 0)),
			float32(getNumber(opts, "length", 0)),
			float32(getNumber(opts, "fov", 0)),
			float32(getNumber(opts, "thickness", 0)),
			ids...,
		), nil
	})
	registerField(L, "Joystick", func(L *lua.LState, name string, opts *lua.LTable) (domain.FieldSpec, error) {
		mode, err := domain.ParseAxesMode(getString(opts, "mode", ""))
		if err != nil {
			return domain.FieldSpec{}, err
		}
		entity, err := domain.ParseControlledEntity(getString(opts, "entity", "player"))
		if err != nil {
			return domain.FieldSpec{}, err
		}
		frame, err := domain.ParseControlFrame(getString(opts, "frame", "player"))
		if err != nil {
			return domain.FieldSpec{}, err
		}
		return domain.JoystickField(name, mode, entity, frame), nil
	})

	// Player { fields } and Camera { fields } take the field list directly.
	for global, role := range map[string]entityRole{"Player": rolePlayer, "Camera": roleCamera} {
		role := role
		L.SetGlobal(global, L.NewFunction(func(L *lua.LState) int {
			fields := checkFields(L, L.OptTable(1, L.NewTable()))
			pushUserData(L, &entityDecl{role: role, schema: domain.EntitySchema{Fields: fields}})
			return 1
		}))
	}

	// Entity "name" { fields } declares a global entity.
	L.SetGlobal("Entity", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			fields := checkFields(L, L.OptTable(1, L.NewTable()))
			pushUserData(L, &entityDecl{role: roleGlobal, schema: domain.EntitySchema{Name: name, Fields: fields}})
			return 1
		}))
		return 1
	}))

	// Brain "name" { ... } records a brain schema.
	L.SetGlobal("Brain", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.brains = append(coll.brains, compileBrain(L, name, L.CheckTable(1)))
			return 0
		}))
		return 1
	}))
}

type fieldBuilder func(L *lua.LState, name string, opts *lua.LTable) (domain.FieldSpec, error)

// registerField installs a curried constructor: Kind "name" { opts }.
func registerField(L *lua.LState, kind string, build fieldBuilder) {
	L.SetGlobal(kind, L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			opts := L.OptTable(1, L.NewTable())
			spec, err := build(L, name, opts)
			if err != nil {
				L.RaiseError("%s %q: %v", kind, name, err)
				return 0
			}
			spec.Clamping = getBool(opts, "clamp", false)
			if err := spec.Validate(); err != nil {
				L.RaiseError("%s %q: %v", kind, name, err)
				return 0
			}
			pushUserData(L, spec)
			return 1
		}))
		return 1
	}))
}

func pushUserData(L *lua.LState, v any) {
	ud := L.NewUserData()
	ud.Value = v
	L.Push(ud)
}

// resolveField accepts a field userdata or an uncalled constructor such as
// Bool "jump", which is invoked with no options.
func resolveField(L *lua.LState, v lua.LValue) (domain.FieldSpec, bool) {
	if fn, ok := v.(*lua.LFunction); ok {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
			L.RaiseError("%v", err)
			return domain.FieldSpec{}, false
		}
		v = L.Get(-1)
		L.Pop(1)
	}
	ud, ok := v.(*lua.LUserData)
	if !ok {
		return domain.FieldSpec{}, false
	}
	spec, ok := ud.Value.(domain.FieldSpec)
	return spec, ok
}

// checkFields reads the array part of tbl as an ordered field list.
func checkFields(L *lua.LState, tbl *lua.LTable) []domain.FieldSpec {
	var fields []domain.FieldSpec
	for i := 1; i <= tbl.MaxN(); i++ {
		spec, ok := resolveField(L, tbl.RawGetInt(i))
		if !ok {
			L.RaiseError("entry %d is not an attribute declaration", i)
			return nil
		}
		fields = append(fields, spec)
	}
	return fields
}

func entityValue(L *lua.LState, v lua.LValue, want entityRole, key string) *domain.EntitySchema {
	if v == lua.LNil {
		return nil
	}
	var decl *entityDecl
	if ud, ok := v.(*lua.LUserData); ok {
		decl, _ = ud.Value.(*entityDecl)
	}
	if decl == nil || decl.role != want {
		L.RaiseError("%s must be declared with %s", key, roleConstructor(want))
		return nil
	}
	s := decl.schema
	return &s
}

func roleConstructor(r entityRole) string {
	switch r {
	case rolePlayer:
		return "Player { ... }"
	case roleCamera:
		return "Camera { ... }"
	}
	return `Entity "name" { ... }`
}

func compileBrain(L *lua.LState, name string, tbl *lua.LTable) domain.BrainSchema {
	b := domain.BrainSchema{Name: name}
	b.Observations.Player = entityValue(L, tbl.RawGetString("player"), rolePlayer, "player")
	b.Observations.Camera = entityValue(L, tbl.RawGetString("camera"), roleCamera, "camera")
	if globals := getTable(tbl, "globals"); globals != nil {
		for i := 1; i <= globals.MaxN(); i++ {
			g := entityValue(L, globals.RawGetInt(i), roleGlobal, fmt.Sprintf("globals[%d]", i))
			b.Observations.Globals = append(b.Observations.Globals, *g)
		}
	}
	if actions := getTable(tbl, "actions"); actions != nil {
		b.Actions = checkFields(L, actions)
	}
	return b
}

func getString(tbl *lua.LTable, key, def string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return def
}

func getBool(tbl *lua.LTable, key string, def bool) bool {
	if b, ok := tbl.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return def
}

func getNumber(tbl *lua.LTable, key string, def float64) float64 {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return float64(n)
	}
	return def
}

func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// stringList reads the array part of tbl as strings.
func stringList(tbl *lua.LTable) ([]string, error) {
	out := make([]string, 0, tbl.MaxN())
	for i := 1; i <= tbl.MaxN(); i++ {
		s, ok := tbl.RawGetInt(i).(lua.LString)
		if !ok {
			return nil, fmt.Errorf("entry %d is not a string", i)
		}
		out = append(out, string(s))
	}
	return out, nil
}
