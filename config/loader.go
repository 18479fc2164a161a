package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file values,
// e.g. ROMA_RUNTIME_MAX_DEPTH.
const EnvPrefix = "ROMA"

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".json":
		v.SetConfigType("json")
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return v, nil
}

// decodeHook extends viper's default hooks so that bare numbers decode into
// durations as seconds ("timeout: 120" is two minutes).
func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
		case reflect.String:
			if secs, err := strconv.ParseFloat(strings.TrimSpace(data.(string)), 64); err == nil {
				return time.Duration(secs * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}

// Load reads a Tree from a YAML or JSON file. Environment variables prefixed
// with ROMA override keys present in the file. Durations accept Go duration
// strings ("30s") or a number of seconds.
func Load(path string) (*Tree, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	v.SetDefault("runtime.max_depth", 1)

	cfg := &Tree{}
	if err := v.Unmarshal(cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadOverlay reads an Overlay from a YAML or JSON file. Keys missing from the
// file keep the DefaultOverlay values.
func LoadOverlay(path string) (Overlay, error) {
	v, err := newViper(path)
	if err != nil {
		return Overlay{}, err
	}

	ov := DefaultOverlay()
	if err := v.Unmarshal(&ov, decodeHook()); err != nil {
		return Overlay{}, fmt.Errorf("failed to unmarshal overlay: %w", err)
	}
	return ov, nil
}

// Marshal renders t as YAML.
func Marshal(t *Tree) ([]byte, error) {
	out, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
