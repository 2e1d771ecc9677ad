package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AreaRules lists the areas whose tags must always carry a rack location.
type AreaRules struct {
	RequiredLocation []string `mapstructure:"requiredLocation"`
}

type AreaRulesHolder struct {
	current atomic.Value // holds areaSet
}

type areaSet map[string]struct{}

var defaultConfigPaths = []string{
	"/var/lib/rfidtrack/config",
	"/etc/rfidtrack",
	".",
}

// NewAreaRulesHolder loads areas.yml and keeps it hot-reloaded. Without a
// file the REQUIRED_LOCATION_AREAS env list applies.
func NewAreaRulesHolder(cfg Config) (*AreaRulesHolder, error) {
	return loadAreaRules(defaultConfigPaths, cfg.Tags.RequiredAreas)
}

// NewStaticAreaRules builds a holder that never reloads.
func NewStaticAreaRules(areas ...string) *AreaRulesHolder {
	holder := &AreaRulesHolder{}
	holder.current.Store(toAreaSet(areas))
	return holder
}

func loadAreaRules(paths []string, fallback []string) (*AreaRulesHolder, error) {
	v := viper.New()

	v.SetConfigName("areas")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("RFIDTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		v.SetDefault("areas.requiredLocation", fallback)
	}

	var rules AreaRules
	if err := v.UnmarshalKey("areas", &rules); err != nil {
		return nil, err
	}
	if err := validateAreaRules(rules); err != nil {
		return nil, err
	}

	holder := &AreaRulesHolder{}
	holder.current.Store(toAreaSet(rules.RequiredLocation))

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated AreaRules
			if err := v.UnmarshalKey("areas", &updated); err != nil {
				zap.L().Warn("area rules reload failed", zap.Error(err))
				return
			}
			if err := validateAreaRules(updated); err != nil {
				zap.L().Warn("invalid area rules ignored", zap.Error(err))
				return
			}
			holder.current.Store(toAreaSet(updated.RequiredLocation))
			zap.L().Info("area rules reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// RequiresLocation reports whether tags in area must have a rack location.
// The comparison is case-insensitive.
func (h *AreaRulesHolder) RequiresLocation(area string) bool {
	if h == nil {
		return false
	}
	key := strings.ToUpper(strings.TrimSpace(area))
	if key == "" {
		return false
	}
	set, _ := h.current.Load().(areaSet)
	_, ok := set[key]
	return ok
}

func (h *AreaRulesHolder) Areas() []string {
	if h == nil {
		return nil
	}
	set, _ := h.current.Load().(areaSet)
	out := make([]string, 0, len(set))
	for area := range set {
		out = append(out, area)
	}
	return out
}

func validateAreaRules(rules AreaRules) error {
	for _, area := range rules.RequiredLocation {
		if strings.TrimSpace(area) == "" {
			return errors.New("areas.requiredLocation cannot contain blank entries")
		}
	}
	return nil
}

func toAreaSet(areas []string) areaSet {
	set := make(areaSet, len(areas))
	for _, area := range areas {
		area = strings.ToUpper(strings.TrimSpace(area))
		if area == "" {
			continue
		}
		set[area] = struct{}{}
	}
	return set
}
