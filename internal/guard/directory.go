// Package guard restricts tool calls to an allow-list of Backlog projects.
//
// A Directory holds the allow-list resolved once at startup; a Gate consults
// it on every tool call and either rejects the call, rewrites its project
// arguments, or passes it through.
package guard

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WritePolicy controls enforcement on project-scoped write tools.
type WritePolicy string

const (
	// WriteGuardOn rejects writes outside the allow-list.
	WriteGuardOn WritePolicy = "on"
	// WriteGuardOff applies no policy to writes.
	WriteGuardOff WritePolicy = "off"
)

// ReadPolicy controls enforcement on project-scoped read tools.
type ReadPolicy string

const (
	// ReadGuardOff applies no policy to reads.
	ReadGuardOff ReadPolicy = "off"
	// ReadGuardFilter narrows reads to the allow-list.
	ReadGuardFilter ReadPolicy = "filter"
	// ReadGuardDeny rejects reads outside the allow-list.
	ReadGuardDeny ReadPolicy = "deny"
)

// RuntimeMode distinguishes production from developer runtimes during validation.
type RuntimeMode string

const (
	// RuntimeProduction fails closed on every questionable configuration.
	RuntimeProduction RuntimeMode = "production"
	// RuntimeDevelopment downgrades an unenforced allow-list to a warning.
	RuntimeDevelopment RuntimeMode = "development"
)

// UnguardedOKToken must be supplied to run fully unguarded in production.
const UnguardedOKToken = "I_UNDERSTAND_THE_RISKS"

// Config is the immutable guard configuration supplied at startup.
type Config struct {
	// AllowedProjectIDs are the configured IDs prior to numeric coercion.
	AllowedProjectIDs  []string
	AllowedProjectKeys []string
	WriteGuard         WritePolicy
	ReadGuard          ReadPolicy
	// DefaultProjectID is injected into unscoped write calls. Zero means unset.
	DefaultProjectID int
	// UnguardedOK is the escape hatch for a fully open production runtime.
	UnguardedOK   string
	KeyResolveTTL time.Duration
	Runtime       RuntimeMode
}

// ParseWritePolicy validates a write guard setting. Empty means off.
func ParseWritePolicy(raw string) (WritePolicy, error) {
	switch policy := WritePolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return WriteGuardOff, nil
	case WriteGuardOn, WriteGuardOff:
		return policy, nil
	default:
		return "", fmt.Errorf("invalid write guard %q (allowed: %s|%s)", raw, WriteGuardOn, WriteGuardOff)
	}
}

// ParseReadPolicy validates a read guard setting. Empty means off.
func ParseReadPolicy(raw string) (ReadPolicy, error) {
	switch policy := ReadPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return ReadGuardOff, nil
	case ReadGuardOff, ReadGuardFilter, ReadGuardDeny:
		return policy, nil
	default:
		return "", fmt.Errorf("invalid read guard %q (allowed: %s|%s|%s)", raw, ReadGuardOff, ReadGuardFilter, ReadGuardDeny)
	}
}

// Directory owns the project allow-list. It is populated by Initialize and
// read-only afterwards, so concurrent readers need no locking.
type Directory struct {
	cfg    Config
	lookup Lookup
	logger zerolog.Logger

	initialized bool
	ids         []int
	idSet       map[int]struct{}
	keys        map[string]struct{}
}

// NewDirectory creates an uninitialized directory.
func NewDirectory(cfg Config, lookup Lookup, logger zerolog.Logger) *Directory {
	if cfg.WriteGuard == "" {
		cfg.WriteGuard = WriteGuardOff
	}
	if cfg.ReadGuard == "" {
		cfg.ReadGuard = ReadGuardOff
	}
	if cfg.Runtime == "" {
		cfg.Runtime = RuntimeProduction
	}
	return &Directory{
		cfg:    cfg,
		lookup: lookup,
		logger: logger.With().Str("component", "project_guard").Logger(),
		idSet:  map[int]struct{}{},
		keys:   map[string]struct{}{},
	}
}

// Initialize resolves configured keys and validates the guard configuration.
// Any error is fatal: the process must not serve calls with a misread policy.
func (d *Directory) Initialize(ctx context.Context) error {
	if d.initialized {
		return ErrAlreadyInitialized
	}
	d.initialized = true

	for _, raw := range d.cfg.AllowedProjectIDs {
		if id, ok := coerceProjectID(raw); ok {
			d.addID(id)
		}
	}

	if len(d.cfg.AllowedProjectKeys) > 0 {
		if d.lookup == nil {
			return fmt.Errorf("%w: no project lookup configured", ErrUnresolvedProjectKey)
		}
		projects, err := d.lookup.ListProjects(ctx)
		if err != nil {
			return fmt.Errorf("listing projects for key resolution: %w", err)
		}
		byKey := make(map[string]int, len(projects))
		for _, project := range projects {
			byKey[project.Key] = project.ID
		}
		for _, rawKey := range d.cfg.AllowedProjectKeys {
			key := strings.TrimSpace(rawKey)
			if key == "" {
				continue
			}
			id, ok := byKey[key]
			if !ok || id == 0 {
				return fmt.Errorf("%w: %s", ErrUnresolvedProjectKey, key)
			}
			d.keys[key] = struct{}{}
			d.addID(id)
		}
	}

	return d.validate()
}

func (d *Directory) validate() error {
	hasAnyAllowList := len(d.ids) > 0
	writeOn := d.cfg.WriteGuard == WriteGuardOn
	readOn := d.cfg.ReadGuard != ReadGuardOff
	production := d.cfg.Runtime == RuntimeProduction

	switch {
	case (writeOn || readOn) && !hasAnyAllowList:
		return fmt.Errorf("%w: guards are enabled but no allowed projects are configured", ErrInconsistentGuardConfig)

	case hasAnyAllowList && !writeOn && !readOn:
		const msg = "allowed projects are configured but both read and write guards are off"
		if production {
			return fmt.Errorf("%w: %s", ErrInconsistentGuardConfig, msg)
		}
		d.logger.Warn().Ints("allowed_project_ids", d.AllowedProjectIDs()).Msg(msg)

	case !hasAnyAllowList && !writeOn && !readOn && production:
		if strings.TrimSpace(d.cfg.UnguardedOK) != UnguardedOKToken {
			return fmt.Errorf("%w: running in production without guards requires BACKLOG_UNGUARDED_OK=%s", ErrInconsistentGuardConfig, UnguardedOKToken)
		}
		d.logger.Warn().Msg("project guard disabled in production by explicit override")
	}

	d.logger.Info().
		Str("write_guard", string(d.cfg.WriteGuard)).
		Str("read_guard", string(d.cfg.ReadGuard)).
		Ints("allowed_project_ids", d.AllowedProjectIDs()).
		Msg("project guard initialized")
	return nil
}

func (d *Directory) addID(id int) {
	if _, exists := d.idSet[id]; exists {
		return
	}
	d.idSet[id] = struct{}{}
	d.ids = append(d.ids, id)
}

// Config returns the configuration the directory was built from.
func (d *Directory) Config() Config {
	return d.cfg
}

// Open reports whether no allow-list is in effect.
func (d *Directory) Open() bool {
	return len(d.ids) == 0
}

// IsAllowedID reports whether a numeric project ID may be accessed.
func (d *Directory) IsAllowedID(id int) bool {
	if len(d.ids) == 0 {
		return true
	}
	_, ok := d.idSet[id]
	return ok
}

// IsAllowedKey reports whether a project key may be accessed. Only configured
// keys match; a key is never allowed through an ID configured elsewhere.
func (d *Directory) IsAllowedKey(key string) bool {
	if len(d.ids) == 0 {
		return true
	}
	_, ok := d.keys[strings.TrimSpace(key)]
	return ok
}

// AllowedProjectIDs returns the allow-list in configuration order.
func (d *Directory) AllowedProjectIDs() []int {
	out := make([]int, len(d.ids))
	copy(out, d.ids)
	return out
}

// coerceProjectID is permissive: anything that is not an integral finite
// number is dropped.
func coerceProjectID(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int32:
		return int(typed), true
	case int64:
		return int(typed), true
	case float32:
		return floatToID(float64(typed))
	case float64:
		return floatToID(typed)
	case interface{ Int64() (int64, error) }:
		if n, err := typed.Int64(); err == nil {
			return int(n), true
		}
		if s, ok := typed.(fmt.Stringer); ok {
			return coerceProjectID(s.String())
		}
		return 0, false
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, false
		}
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return floatToID(f)
	default:
		return 0, false
	}
}

func floatToID(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int(f), true
}
