// SPDX-License-Identifier: LGPL-2.1-only

package plugin

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestEntry describes one plugin's registration in plugins.yaml: its
// name, which phases it participates in, and an optional per-plugin
// timeout override. The manifest only fixes registration *order* and
// declared capability; the actual Go callback funcs are wired by the
// process embedding this engine (there is no plugin-loading subsystem in
// scope here).
type ManifestEntry struct {
	Name    string   `yaml:"name"`
	Phases  []string `yaml:"phases"`
	Timeout string   `yaml:"timeout,omitempty"`
}

type Manifest struct {
	Plugins []ManifestEntry `yaml:"plugins"`
}

// LoadManifest reads a plugins.yaml file describing registration order.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Implements reports whether entry declares phase among its Phases.
func (e ManifestEntry) Implements(phase string) bool {
	for _, p := range e.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// TimeoutDuration parses the entry's timeout override, or zero if unset
// (the registry then falls back to DefaultTimeout).
func (e ManifestEntry) TimeoutDuration() time.Duration {
	if e.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// OrderFromManifest returns the plugin names in manifest order. The daemon
// logs this order when it loads a manifest; it does not register any
// callbacks from it.
func OrderFromManifest(m *Manifest) []string {
	names := make([]string, len(m.Plugins))
	for i, p := range m.Plugins {
		names[i] = p.Name
	}
	return names
}
