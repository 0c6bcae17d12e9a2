package data

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SpawnEntry defines a recurring spawn of one prefab.
type SpawnEntry struct {
	Prefab   string        `yaml:"prefab"`
	Interval time.Duration `yaml:"interval"`
	Count    int           `yaml:"count"`
	X        float32       `yaml:"x"`
	Y        float32       `yaml:"y"`
	Z        float32       `yaml:"z"`
	Spread   float32       `yaml:"spread"`  // random offset on X/Y, +-spread
	Prewarm  int           `yaml:"prewarm"` // instances built at startup
}

type spawnListFile struct {
	Spawns []SpawnEntry `yaml:"spawns"`
}

// LoadSpawnList loads spawn entries from a YAML file.
func LoadSpawnList(path string) ([]SpawnEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	return ParseSpawnList(raw)
}

func ParseSpawnList(raw []byte) ([]SpawnEntry, error) {
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	for i := range f.Spawns {
		s := &f.Spawns[i]
		if s.Prefab == "" {
			return nil, fmt.Errorf("spawn #%d: missing prefab", i+1)
		}
		if s.Interval <= 0 {
			return nil, fmt.Errorf("spawn #%d (%s): interval must be positive", i+1, s.Prefab)
		}
		if s.Count <= 0 {
			s.Count = 1
		}
		if s.Spread < 0 || s.Prewarm < 0 {
			return nil, fmt.Errorf("spawn #%d (%s): spread and prewarm must not be negative", i+1, s.Prefab)
		}
	}
	return f.Spawns, nil
}
