package config

import (
	_ "embed"
	"errors"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// DefaultContent returns the built-in defaults as TOML, as printed by
// "distsync config --defaults".
func DefaultContent() string {
	return string(defaultConfig)
}

// embedded is a koanf.Provider over an in-memory document; it only serves
// bytes, so a parser is always required.
type embedded []byte

func (e embedded) ReadBytes() ([]byte, error) { return e, nil }

func (embedded) Read() (map[string]interface{}, error) {
	return nil, errors.New("embedded provider requires a parser")
}
