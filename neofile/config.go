package neofile

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/talvora/neofile/codec"
)

// rawOverride is the loosely typed shape an external override arrives
// in: YAML bytes decoded into a map, then materialized into Override.
// The codec accepts already-resolved override bytes here; it does not
// go looking for a config file or environment variable itself — that
// discovery step is left to the caller.
type rawOverride struct {
	Magic         string `mapstructure:"magic"`
	Ver           string `mapstructure:"ver"`
	Delimiter     string `mapstructure:"delimiter"`
	NewStyle      *bool  `mapstructure:"newstyle"`
}

// DecodeOverride parses a YAML document (already read by the caller
// from wherever it lives) into an Override suitable for Resolve. The
// delimiter field, if present, is decoded with the same \xNN / C-escape
// rules external configuration uses elsewhere (codec.DecodeEscape),
// matching the reference implementation's handling of the `delimiter`
// INI key.
func DecodeOverride(yamlDoc []byte) (*Override, error) {
	var loose map[string]interface{}
	if err := yaml.Unmarshal(yamlDoc, &loose); err != nil {
		return nil, errors.Wrap(err, "neofile: decode override yaml")
	}

	var raw rawOverride
	if err := mapstructure.Decode(loose, &raw); err != nil {
		return nil, errors.Wrap(err, "neofile: decode override fields")
	}

	out := &Override{}
	if raw.Magic != "" {
		out.Magic = &raw.Magic
	}
	if raw.Ver != "" {
		out.VersionDigits = &raw.Ver
	}
	if raw.Delimiter != "" {
		delim, err := codec.DecodeEscape(raw.Delimiter)
		if err != nil {
			return nil, errors.Wrap(err, "neofile: decode override delimiter")
		}
		out.Delimiter = delim
	}
	out.NewStyle = raw.NewStyle
	return out, nil
}
