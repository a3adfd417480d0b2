package scraper

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Constructor builds a plugin instance from the shared configuration. The
// configuration is validated by the constructor, not by the registry.
type Constructor func(cfg Config, logger *zap.Logger) (Plugin, error)

// PluginInfo describes a registered plugin.
type PluginInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type registration struct {
	description string
	ctor        Constructor
}

// Registry maps plugin names to constructors. Registration typically happens
// once at startup, but the registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	entries map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger,
		entries: make(map[string]registration),
	}
}

// Register adds a plugin constructor under name. Registering an existing name
// overwrites the previous entry with a warning.
func (r *Registry) Register(name, description string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		r.logger.Warn("overwriting registered plugin", zap.String("plugin", name))
	}
	r.entries[name] = registration{description: description, ctor: ctor}
	r.logger.Debug("registered plugin", zap.String("plugin", name))
}

// Unregister removes a plugin from the registry. It reports whether the
// plugin was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	return true
}

// Get builds a plugin instance by name. An unknown name yields an error
// listing the available plugins.
func (r *Registry) Get(name string, cfg Config, logger *zap.Logger) (Plugin, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("plugin %q not found, available: [%s]",
			name, strings.Join(r.names(), ", "))
	}
	return entry.ctor(cfg, logger)
}

// List returns the registered plugin names, sorted.
func (r *Registry) List() []string {
	return r.names()
}

// Info returns name and description for every registered plugin, sorted by
// name.
func (r *Registry) Info() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]PluginInfo, 0, len(r.entries))
	for name, entry := range r.entries {
		infos = append(infos, PluginInfo{Name: name, Description: entry.description})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (r *Registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
