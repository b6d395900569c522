// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/appwall/internal/errors"
)

// Load reads path and returns a validated config. A missing file is not an
// error when allowMissing is set; defaults are returned instead.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Attr(errors.Wrap(err, errors.KindNotFound, "failed to read config file"), "path", path)
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes HCL source. filename is used in diagnostics; the content
// is always parsed as HCL native syntax whatever its extension.
func LoadBytes(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(hclName(filename), data, nil, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindInput, "failed to decode config")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// hclName gives hclsimple a name it will parse as native syntax. It picks
// the parser from the extension and rejects anything but .hcl and .json.
func hclName(filename string) string {
	if filepath.Ext(filename) == ".hcl" {
		return filename
	}
	return filename + ".hcl"
}
