package options

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"sigs.k8s.io/yaml"

	"github.com/authzed/connector-archive/pkg/config"
)

type ConfigPrinter func(c *config.Config) error

func DiscardConfigPrinter(*config.Config) error {
	return nil
}

var _ ConfigPrinter = DiscardConfigPrinter

func JSONConfigPrinter(w io.Writer) ConfigPrinter {
	return func(c *config.Config) error {
		configJSON, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(configJSON))
		return err
	}
}

func YAMLConfigPrinter(w io.Writer) ConfigPrinter {
	return func(c *config.Config) error {
		configYaml, err := yaml.Marshal(c)
		if err != nil {
			return err
		}
		_, err = w.Write(configYaml)
		return err
	}
}

// NewConfigPrinter returns the printer for an output format, "yaml" or
// "json".
func NewConfigPrinter(format string, w io.Writer) (ConfigPrinter, error) {
	switch format {
	case "", "yaml":
		return YAMLConfigPrinter(w), nil
	case "json":
		return JSONConfigPrinter(w), nil
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
}

// ConfigOptions locates the tenant rules
type ConfigOptions struct {
	ConfigFile string

	Config *config.Config
}

// Complete loads the tenant rules from ConfigFile unless already set.
func (o *ConfigOptions) Complete() error {
	if o.Config != nil {
		log.Debug().Msg("tenant config already set, skipping config option validation")
		return nil
	}
	if o.ConfigFile == "" {
		return fmt.Errorf("no tenant config file set")
	}
	log.Info().Str("config", o.ConfigFile).Msg("loading tenant config from file")
	c, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	o.Config = c
	return nil
}
