package config

import (
	"fmt"
	"reflect"
	"strings"
)

// tag represents parsed struct tag options.
type tag struct {
	Name     string
	Default  string
	Required bool
	NotEmpty bool
}

// parseTag parses the env struct tag.
func parseTag(field reflect.StructField) (tag, error) {
	envTag := field.Tag.Get("env")
	if envTag == "" || envTag == "-" {
		return tag{}, nil
	}

	parts := strings.Split(envTag, ",")
	t := tag{
		Name:    parts[0],
		Default: field.Tag.Get("envDefault"),
	}

	for _, part := range parts[1:] {
		switch part {
		case "required":
			t.Required = true
		case "notEmpty":
			t.NotEmpty = true
		default:
			return tag{}, fmt.Errorf("unknown env tag option %q", part)
		}
	}

	return t, nil
}
