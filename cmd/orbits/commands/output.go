package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/orbit"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
	formatTree = "tree"
)

// writeStructured encodes v as json, yaml or toml.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal JSON")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to marshal YAML")
		}
		return enc.Close()
	case formatTOML:
		data, err := toml.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "failed to marshal TOML")
		}
		_, err = w.Write(data)
		return err
	default:
		return errors.NewInvalidRequestError("unknown format %q", format)
	}
}

// parseIDArg parses a positional ID argument.
func parseIDArg(args []string, what string) (orbit.ID, error) {
	if len(args) == 0 {
		return "", errors.NewInvalidRequestError("%s ID is required", what)
	}
	id, err := orbit.ParseID(args[0])
	if err != nil {
		return "", errors.Wrapf(err, "invalid %s ID", what)
	}
	return id, nil
}

// parseOptionalID parses a flag value that may be empty.
func parseOptionalID(value, what string) (orbit.ID, error) {
	if value == "" {
		return "", nil
	}
	id, err := orbit.ParseID(value)
	if err != nil {
		return "", errors.Wrapf(err, "invalid %s ID", what)
	}
	return id, nil
}
