package param

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format names a parametrization file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Extensions lists the file extensions LoadFile understands, in lookup order.
var Extensions = []string{".toml", ".yaml", ".yml", ".json"}

// FormatOf infers the encoding from a file name.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported parametrization file %q: expected one of %s", path, strings.Join(Extensions, ", "))
}

// Decode parses and validates a parametrization. Unknown fields are rejected.
func Decode(data []byte, format Format) (Parametrization, error) {
	var p Parametrization
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Parametrization{}, fmt.Errorf("TOML parse failed: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Parametrization{}, fmt.Errorf("YAML parse failed: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Parametrization{}, fmt.Errorf("JSON parse failed: %w", err)
		}
	default:
		return Parametrization{}, fmt.Errorf("unknown format %q", format)
	}
	if err := p.Validate(); err != nil {
		return Parametrization{}, err
	}
	return p, nil
}

// LoadFile reads and decodes a parametrization file.
func LoadFile(path string) (Parametrization, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Parametrization{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Parametrization{}, fmt.Errorf("reading parametrization: %w", err)
	}
	p, err := Decode(data, format)
	if err != nil {
		return Parametrization{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Encode renders p in the given format.
func Encode(p Parametrization, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(p)
	case FormatYAML:
		return yaml.Marshal(p)
	case FormatJSON:
		return json.MarshalIndent(p, "", "  ")
	}
	return nil, fmt.Errorf("unknown format %q", format)
}
