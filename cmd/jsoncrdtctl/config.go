package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// config is the optional --config YAML file's shape: a default actor
// identity and default ApplyOptions, loaded once at startup (no hot
// reload, this is a CLI not a long-running service).
type config struct {
	Actor string `yaml:"actor"`
	Apply struct {
		Semantics     string `yaml:"semantics"`
		TestAgainst   string `yaml:"testAgainst"`
		StrictParents bool   `yaml:"strictParents"`
	} `yaml:"apply"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
