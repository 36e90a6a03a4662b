package procs

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RestartPolicy names when a supervised process should be restarted
// after it exits.
type RestartPolicy string

const (
	RestartNever     RestartPolicy = "never"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartAlways    RestartPolicy = "always"
)

// ProcessSpec is one declaratively-configured supervised process,
// supplementing the original draft's bare child-process reaper with a
// restart-policy manifest (the kind of feature a production
// supervisor binary, per original_source's src/bin/sink.rs pattern,
// would add on top of the core reactor).
type ProcessSpec struct {
	Name    string        `yaml:"name"`
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Env     []string      `yaml:"env"`
	Dir     string        `yaml:"dir"`
	Restart RestartPolicy `yaml:"restart"`
}

type manifest struct {
	Processes []ProcessSpec `yaml:"processes"`
}

// LoadManifest reads a YAML-encoded list of process specs from path.
func LoadManifest(path string) ([]ProcessSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for i := range m.Processes {
		if m.Processes[i].Restart == "" {
			m.Processes[i].Restart = RestartNever
		}
	}
	return m.Processes, nil
}
