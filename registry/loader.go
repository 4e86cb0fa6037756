package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/sorhq/sor/core"
)

// Snapshot is an immutable point-in-time view of the merged registry. A
// Loader swaps the live Snapshot atomically on reload; callers holding a
// reference to one never see a torn read across concurrent reloads.
type Snapshot struct {
	RegistryVersion string
	Skills          []*SkillEntry
	Ops             []*OpEntry
}

// Diff reports the names of entries added, removed, or whose status or
// autonomy changed between an older snapshot and this one. It exists for
// operational tooling that wants to log what a reload actually changed,
// rather than just that one happened.
func (s *Snapshot) Diff(prev *Snapshot) (added, removed, changed []string) {
	if prev == nil {
		for _, sk := range s.Skills {
			added = append(added, sk.EntryName())
		}
		for _, op := range s.Ops {
			added = append(added, op.EntryName())
		}
		return added, removed, changed
	}
	prevIndex := make(map[string]core.Entry, len(prev.Skills)+len(prev.Ops))
	for _, sk := range prev.Skills {
		prevIndex[entryKey(sk)] = sk
	}
	for _, op := range prev.Ops {
		prevIndex[entryKey(op)] = op
	}
	curIndex := make(map[string]core.Entry, len(s.Skills)+len(s.Ops))
	for _, sk := range s.Skills {
		curIndex[entryKey(sk)] = sk
	}
	for _, op := range s.Ops {
		curIndex[entryKey(op)] = op
	}
	for key, cur := range curIndex {
		prev, ok := prevIndex[key]
		if !ok {
			added = append(added, key)
			continue
		}
		if prev.EntryStatus() != cur.EntryStatus() || prev.EntryAutonomy() != cur.EntryAutonomy() {
			changed = append(changed, key)
		}
	}
	for key := range prevIndex {
		if _, ok := curIndex[key]; !ok {
			removed = append(removed, key)
		}
	}
	return added, removed, changed
}

func entryKey(e core.Entry) string {
	return fmt.Sprintf("%s:%s@%s", e.EntryKind(), e.EntryName(), e.EntryVersion())
}

// Loader reads the base skill/op/capability registry files plus any YAML
// overlays, validates them, and exposes an immutable Snapshot. Reload()
// re-reads from disk unconditionally; Current() reloads only when the
// underlying files' modification times have moved since the last read,
// matching the polling-based hot-reload the system is built around (no
// filesystem watcher, just a compare-mtimes-on-read check).
type Loader struct {
	SkillsPath      string
	OpsPath         string
	CapabilitiesPath string
	OverlayPaths    []string
	Logger          core.Logger

	mu       sync.Mutex
	mtimes   map[string]int64
	snapshot atomic.Pointer[Snapshot]
}

// NewLoader constructs a Loader over the given registry and overlay paths.
func NewLoader(skillsPath, opsPath, capabilitiesPath string, overlayPaths []string, logger core.Logger) *Loader {
	if logger == nil {
		logger = core.NoopLogger{}
	}
	return &Loader{
		SkillsPath:       skillsPath,
		OpsPath:          opsPath,
		CapabilitiesPath: capabilitiesPath,
		OverlayPaths:     overlayPaths,
		Logger:           logger,
	}
}

// Load reads and validates the registry from disk, installing a fresh
// Snapshot. It is safe to call concurrently with Current/List/Get.
func (l *Loader) Load() (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

// Current returns the live Snapshot, reloading first if any watched file's
// modification time has changed since the last load.
func (l *Loader) Current() (*Snapshot, error) {
	if l.changed() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.changed() {
			return l.loadLocked()
		}
	}
	snap := l.snapshot.Load()
	if snap == nil {
		return l.Load()
	}
	return snap, nil
}

func (l *Loader) watchedPaths() []string {
	paths := []string{l.SkillsPath, l.OpsPath, l.CapabilitiesPath}
	return append(paths, l.OverlayPaths...)
}

func (l *Loader) changed() bool {
	current := statMtimes(l.watchedPaths())
	prev := l.mtimes
	if len(current) != len(prev) {
		return true
	}
	for path, mtime := range current {
		if prev[path] != mtime {
			return true
		}
	}
	return false
}

func statMtimes(paths []string) map[string]int64 {
	mtimes := make(map[string]int64, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		mtimes[path] = info.ModTime().UnixNano()
	}
	return mtimes
}

func (l *Loader) loadLocked() (*Snapshot, error) {
	capabilityIDs, err := loadCapabilityIDs(l.CapabilitiesPath)
	if err != nil {
		return nil, core.NewError("registry.Load", "capabilities_load_failed", err.Error(), core.ErrRegistry, nil)
	}

	skillsFile, err := loadSkillRegistryFile(l.SkillsPath)
	if err != nil {
		return nil, core.NewError("registry.Load", "skill_registry_load_failed", err.Error(), core.ErrRegistry, nil)
	}
	opsFile, err := loadOpRegistryFile(l.OpsPath)
	if err != nil {
		return nil, core.NewError("registry.Load", "op_registry_load_failed", err.Error(), core.ErrRegistry, nil)
	}

	for _, skill := range skillsFile.Skills {
		if err := ValidateSkillDefinition(skill); err != nil {
			return nil, core.NewError("registry.Load", "skill_validation_failed", err.Error(), core.ErrRegistry, map[string]interface{}{"name": skill.Name})
		}
		if err := referencedCapabilitiesKnown(skill.Capabilities, capabilityIDs); err != nil {
			return nil, core.NewError("registry.Load", "unknown_capability", err.Error(), core.ErrRegistry, map[string]interface{}{"name": skill.Name})
		}
	}
	for _, op := range opsFile.Ops {
		if err := ValidateOpDefinition(op); err != nil {
			return nil, core.NewError("registry.Load", "op_validation_failed", err.Error(), core.ErrRegistry, map[string]interface{}{"name": op.Name})
		}
		if err := referencedCapabilitiesKnown(op.Capabilities, capabilityIDs); err != nil {
			return nil, core.NewError("registry.Load", "unknown_capability", err.Error(), core.ErrRegistry, map[string]interface{}{"name": op.Name})
		}
	}

	overrides, err := loadOverrides(l.OverlayPaths)
	if err != nil {
		return nil, core.NewError("registry.Load", "overlay_load_failed", err.Error(), core.ErrRegistry, nil)
	}

	skillEntries := make([]*SkillEntry, 0, len(skillsFile.Skills))
	for _, def := range skillsFile.Skills {
		base := overlayBase{Status: def.Status, Autonomy: def.Autonomy, RateLimit: def.RateLimit}
		merged := applyOverlay(def.Name, def.Version, base, overrides)
		skillEntries = append(skillEntries, &SkillEntry{
			Definition: def,
			Status:     merged.Status,
			Autonomy:   merged.Autonomy,
			RateLimit:  merged.RateLimit,
			Channels:   merged.Channels,
			Actors:     merged.Actors,
		})
	}
	opEntries := make([]*OpEntry, 0, len(opsFile.Ops))
	for _, def := range opsFile.Ops {
		base := overlayBase{Status: def.Status, Autonomy: def.Autonomy, RateLimit: def.RateLimit}
		merged := applyOverlay(def.Name, def.Version, base, overrides)
		opEntries = append(opEntries, &OpEntry{
			Definition: def,
			Status:     merged.Status,
			Autonomy:   merged.Autonomy,
			RateLimit:  merged.RateLimit,
			Channels:   merged.Channels,
			Actors:     merged.Actors,
		})
	}

	snap := &Snapshot{
		RegistryVersion: skillsFile.RegistryVersion,
		Skills:          skillEntries,
		Ops:             opEntries,
	}
	if pipelineErrs := ValidatePipelines(snap); len(pipelineErrs) > 0 {
		return nil, core.NewError("registry.Load", "pipeline_validation_failed", fmt.Sprint(pipelineErrs), core.ErrRegistry, nil)
	}
	prev := l.snapshot.Load()
	l.snapshot.Store(snap)
	l.mtimes = statMtimes(l.watchedPaths())

	added, removed, changed := snap.Diff(prev)
	if prev != nil && (len(added) > 0 || len(removed) > 0 || len(changed) > 0) {
		l.Logger.Info("registry reloaded", map[string]interface{}{
			"added": added, "removed": removed, "changed": changed,
		})
	}
	return snap, nil
}

// ListSkills returns skill entries, reloading first if the registry files
// changed on disk, optionally filtered by status and/or capability.
func (l *Loader) ListSkills(status *core.Status, capability string) ([]*SkillEntry, error) {
	snap, err := l.Current()
	if err != nil {
		return nil, err
	}
	result := make([]*SkillEntry, 0, len(snap.Skills))
	for _, s := range snap.Skills {
		if status != nil && s.Status != *status {
			continue
		}
		if capability != "" && !containsString(s.Definition.Capabilities, capability) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

// ListOps mirrors ListSkills for ops.
func (l *Loader) ListOps(status *core.Status, capability string) ([]*OpEntry, error) {
	snap, err := l.Current()
	if err != nil {
		return nil, err
	}
	result := make([]*OpEntry, 0, len(snap.Ops))
	for _, o := range snap.Ops {
		if status != nil && o.Status != *status {
			continue
		}
		if capability != "" && !containsString(o.Definition.Capabilities, capability) {
			continue
		}
		result = append(result, o)
	}
	return result, nil
}

// GetSkill resolves a skill by name and optional version. An empty version
// matches any version present; if more than one remains, the lookup is
// ambiguous rather than picking one arbitrarily.
func (l *Loader) GetSkill(name, version string) (*SkillEntry, error) {
	snap, err := l.Current()
	if err != nil {
		return nil, err
	}
	var matches []*SkillEntry
	for _, s := range snap.Skills {
		if s.Definition.Name != name {
			continue
		}
		if version != "" && s.Definition.Version != version {
			continue
		}
		matches = append(matches, s)
	}
	return resolveOne(matches, "skill", name, version)
}

// GetOp mirrors GetSkill for ops.
func (l *Loader) GetOp(name, version string) (*OpEntry, error) {
	snap, err := l.Current()
	if err != nil {
		return nil, err
	}
	var matches []*OpEntry
	for _, o := range snap.Ops {
		if o.Definition.Name != name {
			continue
		}
		if version != "" && o.Definition.Version != version {
			continue
		}
		matches = append(matches, o)
	}
	return resolveOne(matches, "op", name, version)
}

func resolveOne[T any](matches []T, kind, name, version string) (T, error) {
	var zero T
	if len(matches) == 0 {
		return zero, core.NewError("registry.Get", "not_found",
			fmt.Sprintf("%s not found: %s@%s", kind, name, displayVersion(version)), core.ErrNotFound,
			map[string]interface{}{"name": name, "version": version})
	}
	if len(matches) > 1 {
		return zero, core.NewError("registry.Get", "ambiguous",
			fmt.Sprintf("multiple %s versions match %s@%s", kind, name, displayVersion(version)), core.ErrAmbiguous,
			map[string]interface{}{"name": name, "version": version})
	}
	return matches[0], nil
}

func displayVersion(version string) string {
	if version == "" {
		return "*"
	}
	return version
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

func loadCapabilityIDs(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file CapabilityRegistryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(file.Capabilities))
	for _, c := range file.Capabilities {
		ids[c.ID] = true
	}
	return ids, nil
}

func referencedCapabilitiesKnown(capabilities []string, known map[string]bool) error {
	for _, cap := range capabilities {
		if !known[cap] {
			return fmt.Errorf("unknown capability referenced: %s", cap)
		}
	}
	return nil
}

func loadSkillRegistryFile(path string) (*SkillRegistryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file SkillRegistryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if !core.IsSemver(file.RegistryVersion) {
		return nil, fmt.Errorf("registry_version must be semver: %q", file.RegistryVersion)
	}
	return &file, nil
}

func loadOpRegistryFile(path string) (*OpRegistryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file OpRegistryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if !core.IsSemver(file.RegistryVersion) {
		return nil, fmt.Errorf("registry_version must be semver: %q", file.RegistryVersion)
	}
	return &file, nil
}

func loadOverrides(paths []string) ([]Override, error) {
	var overrides []Override
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		var file OverlayFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("overlay %s: %w", path, err)
		}
		overrides = append(overrides, file.Overrides...)
	}
	return overrides, nil
}
