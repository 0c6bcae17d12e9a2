package data

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/l1jgo/spawnpool/internal/scene"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/encoding/traditionalchinese"
	"gopkg.in/yaml.v3"
)

// prefabEntry is one row of prefab_list.yaml.
type prefabEntry struct {
	Name       string        `yaml:"name"`
	Kind       string        `yaml:"kind"`
	MaxHP      int32         `yaml:"max_hp"`
	Lifetime   time.Duration `yaml:"lifetime"`
	Behaviours []string      `yaml:"behaviours,omitempty"`
}

type prefabListFile struct {
	Prefabs []prefabEntry `yaml:"prefabs"`
}

// PrefabTable holds all prefabs indexed by name, in file order.
type PrefabTable struct {
	byName map[string]*scene.Prefab
	order  []*scene.Prefab
}

// LoadPrefabTable loads prefabs from a YAML file. charset is "utf-8" (or
// empty) for normal files and "ms950"/"big5" for legacy exports.
func LoadPrefabTable(path, charset string) (*PrefabTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prefab_list: %w", err)
	}
	t, err := ParsePrefabTable(raw, charset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func ParsePrefabTable(raw []byte, charset string) (*PrefabTable, error) {
	raw, err := decodeCharset(raw, charset)
	if err != nil {
		return nil, err
	}
	var f prefabListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prefab_list: %w", err)
	}

	t := &PrefabTable{
		byName: make(map[string]*scene.Prefab, len(f.Prefabs)),
		order:  make([]*scene.Prefab, 0, len(f.Prefabs)),
	}
	for i := range f.Prefabs {
		e := &f.Prefabs[i]
		if e.Name == "" {
			return nil, fmt.Errorf("prefab #%d: missing name", i+1)
		}
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("prefab %q: defined twice", e.Name)
		}
		if e.Lifetime < 0 {
			return nil, fmt.Errorf("prefab %q: negative lifetime", e.Name)
		}
		fp, err := fingerprint(e)
		if err != nil {
			return nil, fmt.Errorf("prefab %q: %w", e.Name, err)
		}
		p := &scene.Prefab{
			Name:        e.Name,
			Kind:        e.Kind,
			MaxHP:       e.MaxHP,
			Lifetime:    e.Lifetime,
			Behaviours:  e.Behaviours,
			Fingerprint: fp,
		}
		t.byName[p.Name] = p
		t.order = append(t.order, p)
	}
	return t, nil
}

// Get returns a prefab by name, or nil if not found.
func (t *PrefabTable) Get(name string) *scene.Prefab {
	return t.byName[name]
}

// Count returns the number of loaded prefabs.
func (t *PrefabTable) Count() int {
	return len(t.order)
}

// All returns prefabs in file order.
func (t *PrefabTable) All() []*scene.Prefab {
	return t.order
}

// fingerprint hashes the canonical re-encoding of e, so formatting and
// comments in the source file do not change it.
func fingerprint(e *prefabEntry) ([32]byte, error) {
	canon, err := yaml.Marshal(e)
	if err != nil {
		return [32]byte{}, fmt.Errorf("fingerprint: %w", err)
	}
	return blake2b.Sum256(canon), nil
}

func decodeCharset(raw []byte, charset string) ([]byte, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return raw, nil
	case "ms950", "big5":
		out, err := traditionalchinese.Big5.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", charset, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
}
