package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/l1jgo/spawnpool/internal/scene"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding node behaviours.
// Single-goroutine access only (game loop).
//
// Scripts register behaviours into the global "behaviours" table:
//
//	behaviours["wobble"] = {
//	  on_spawn = function(node) node.hp = node.max_hp * 2; return node end,
//	  on_despawn = function(node) end,
//	}
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every .lua file in dir.
// A missing dir yields an engine with no behaviours.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("behaviours", vm.NewTable())

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(dir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load behaviour scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory, sorted by name.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Names returns every registered behaviour name.
func (e *Engine) Names() []string {
	var out []string
	if tbl, ok := e.vm.GetGlobal("behaviours").(*lua.LTable); ok {
		tbl.ForEach(func(k, _ lua.LValue) {
			if s, ok := k.(lua.LString); ok {
				out = append(out, string(s))
			}
		})
	}
	sort.Strings(out)
	return out
}

// Behaviour implements scene.BehaviourSource.
func (e *Engine) Behaviour(name string) (scene.Behaviour, error) {
	tbl, ok := e.vm.GetGlobal("behaviours").(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua behaviours table replaced by a %s", e.vm.GetGlobal("behaviours").Type())
	}
	def, ok := tbl.RawGetString(name).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua %q: %w", name, scene.ErrUnknownBehaviour)
	}
	return &luaBehaviour{
		engine:    e,
		name:      name,
		onSpawn:   def.RawGetString("on_spawn"),
		onDespawn: def.RawGetString("on_despawn"),
	}, nil
}

type luaBehaviour struct {
	engine    *Engine
	name      string
	onSpawn   lua.LValue
	onDespawn lua.LValue
}

// OnSpawn calls on_spawn(node). A returned table is written back to the node.
func (b *luaBehaviour) OnSpawn(n *scene.Node) {
	if rt := b.engine.call(b.name, "on_spawn", b.onSpawn, n); rt != nil {
		applyNodeTable(n, rt)
	}
}

func (b *luaBehaviour) OnDespawn(n *scene.Node) {
	b.engine.call(b.name, "on_despawn", b.onDespawn, n)
}

// call runs hook with a node table. Errors are logged, never propagated:
// a broken script must not stall the tick.
func (e *Engine) call(behaviour, hook string, fn lua.LValue, n *scene.Node) *lua.LTable {
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, e.nodeTable(n)); err != nil {
		e.log.Error("lua behaviour error",
			zap.String("behaviour", behaviour),
			zap.String("hook", hook),
			zap.String("node", n.Name),
			zap.Error(err))
		return nil
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	rt, _ := result.(*lua.LTable)
	return rt
}

func (e *Engine) nodeTable(n *scene.Node) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(n.EntityID()))
	t.RawSetString("name", lua.LString(n.Name))
	t.RawSetString("kind", lua.LString(n.Kind))
	t.RawSetString("hp", lua.LNumber(n.HP))
	t.RawSetString("max_hp", lua.LNumber(n.MaxHP))
	t.RawSetString("x", lua.LNumber(n.Transform.Position.X))
	t.RawSetString("y", lua.LNumber(n.Transform.Position.Y))
	t.RawSetString("z", lua.LNumber(n.Transform.Position.Z))
	if lt := n.Lifetime(); lt != nil {
		t.RawSetString("lifetime_ms", lua.LNumber(lt.Remaining.Milliseconds()))
	}
	return t
}

// applyNodeTable copies the writable fields (hp, lifetime_ms) back.
func applyNodeTable(n *scene.Node, t *lua.LTable) {
	if v, ok := t.RawGetString("hp").(lua.LNumber); ok {
		n.HP = int32(v)
	}
	if v, ok := t.RawGetString("lifetime_ms").(lua.LNumber); ok {
		if lt := n.Lifetime(); lt != nil {
			// zero or less expires the node on its next advance
			lt.Remaining = max(time.Duration(float64(v)*float64(time.Millisecond)), 0)
		}
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
