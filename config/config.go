// Package config loads configuration structs from struct tags:
//
//	type Config struct {
//		Addr    string        `env:"ADDR" envDefault:"127.0.0.1:3000" yaml:"addr"`
//		Service string        `env:"SERVICE,notEmpty" yaml:"service"`
//		Timeout time.Duration `env:"TIMEOUT" envDefault:"5s" yaml:"timeout"`
//		DB      DBConfig      `envPrefix:"DB_" yaml:"db"`
//	}
//
// Values are layered: envDefault, then an optional YAML file, then
// environment variables that are set and non-empty. Pointer fields stay nil
// unless some layer sets them, which separates an explicit zero from unset.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Parse parses configuration from environment variables into a struct.
// The struct type T should have fields tagged with `env` tags.
func Parse[T any]() (T, error) {
	return ParseWithPrefix[T]("")
}

// ParseWithPrefix parses configuration with a prefix added to all env vars.
func ParseWithPrefix[T any](prefix string) (T, error) {
	return Load[T](prefix, "")
}

// Load builds a T from defaults, the YAML file at path (skipped when path is
// empty) and the environment, in that order, and validates the result.
func Load[T any](prefix, path string) (T, error) {
	var cfg T
	v := reflect.ValueOf(&cfg).Elem()
	if v.Kind() != reflect.Struct {
		return cfg, fmt.Errorf("config: %T is not a struct", cfg)
	}

	if err := applyDefaults(v); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := applyEnv(v, prefix); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := validateStruct(v, prefix); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// From validates an existing configuration struct.
// This is useful when configuration comes from sources other than env vars.
func From[T any](cfg T) (T, error) {
	v := reflect.ValueOf(&cfg).Elem()
	if err := validateStruct(v, ""); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ErrMissing is wrapped by validation failures of required and notEmpty
// fields.
var ErrMissing = errors.New("missing value")

type leafFunc func(field reflect.StructField, v reflect.Value, name string, t tag) error

// walk calls fn for every tagged leaf field, descending into nested structs
// and accumulating envPrefix.
func walk(v reflect.Value, prefix string, fn leafFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := walk(fieldVal, prefix+field.Tag.Get("envPrefix"), fn); err != nil {
				return err
			}
			continue
		}

		tg, err := parseTag(field)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		if tg.Name == "" {
			continue
		}

		if err := fn(field, fieldVal, prefix+tg.Name, tg); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}

	return nil
}

func applyDefaults(v reflect.Value) error {
	return walk(v, "", func(_ reflect.StructField, fv reflect.Value, _ string, t tag) error {
		if t.Default == "" {
			return nil
		}
		return setValue(fv, t.Default)
	})
}

func applyEnv(v reflect.Value, prefix string) error {
	return walk(v, prefix, func(_ reflect.StructField, fv reflect.Value, name string, _ tag) error {
		val, ok := os.LookupEnv(name)
		if !ok || val == "" {
			return nil
		}
		if err := setValue(fv, val); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

func validateStruct(v reflect.Value, prefix string) error {
	return walk(v, prefix, func(_ reflect.StructField, fv reflect.Value, name string, t tag) error {
		if t.Required && fv.IsZero() {
			return fmt.Errorf("%w: required environment variable %s not set", ErrMissing, name)
		}
		if t.NotEmpty && fv.Kind() == reflect.String && fv.String() == "" {
			return fmt.Errorf("%w: environment variable %s must not be empty", ErrMissing, name)
		}
		return nil
	})
}
