/*
Copyright © 2026 Fariba Mohammaditabar

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as
	published by the Free Software Foundation, either version 3 of the
	License, or (at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	OperationMode string        `yaml:"operation_mode"`
	Paths         Paths         `yaml:"paths"`
	Logging       LoggingConfig `yaml:"logging"`
	Integrity     Integrity     `yaml:"integrity"`
	Scanners      Scanners      `yaml:"scanners"`
}

type Paths struct {
	InputFile       string `yaml:"input_file"`
	MetadataFile    string `yaml:"metadata_file"`
	OutputDirectory string `yaml:"output_directory"`
	ScanTarget      string `yaml:"scan_target"`
}

// Integrity lists extra files that must pass the checksum and permission
// gate before they are read. The metadata file is always gated.
type Integrity struct {
	GateInputFile bool            `yaml:"gate_input_file"`
	Components    []ComponentSpec `yaml:"components"`
}

type ComponentSpec struct {
	Path string `yaml:"path"`
	Mode uint32 `yaml:"mode"`
}

type Scanners struct {
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	ValidateSignatures bool   `yaml:"validate_signatures"`
	YaraBinary         string `yaml:"yara_binary"`
	GitleaksBinary     string `yaml:"gitleaks_binary"`
	RipgrepBinary      string `yaml:"ripgrep_binary"`
}

// Configuration for logging
type LoggingConfig struct {
	EnableConsole     bool   `yaml:"enable_console"`
	UseJSON           bool   `yaml:"use_json"`
	EnableFileLogging bool   `yaml:"enable_file_logging"`
	Directory         string `yaml:"log_directory"`
	Filename          string `yaml:"log_filename"`
	MaxSizeMB         int    `yaml:"max_size_mb"`
	MaxAgeDays        int    `yaml:"max_age_days"`
	MaxBackups        int    `yaml:"max_backups"`
	LogLevel          string `yaml:"log_level"`
	TimeFormat        string `yaml:"time_format"`
}

// Timeout returns the per-scanner invocation deadline.
func (s Scanners) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Load reads and unmarshals the YAML configuration file, then fills in the
// conventional defaults for anything left unset.
func Load(configPath string) (Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	if err != nil {
		return config, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to unmarshal config file %s: %w", configPath, err)
	}

	config.applyDefaults()
	return config, nil
}

// Default returns the configuration used when no config file is present:
// a conventionally named input table in the working directory.
func Default() Config {
	var config Config
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.OperationMode == "" {
		c.OperationMode = "run"
	}
	if c.Paths.InputFile == "" {
		c.Paths.InputFile = "asr_rules.csv"
	}
	if c.Paths.MetadataFile == "" {
		c.Paths.MetadataFile = "metadata.conf"
	}
	if c.Paths.OutputDirectory == "" {
		c.Paths.OutputDirectory = "converted_rules"
	}
	if c.Scanners.YaraBinary == "" {
		c.Scanners.YaraBinary = "yara"
	}
	if c.Scanners.GitleaksBinary == "" {
		c.Scanners.GitleaksBinary = "gitleaks"
	}
	if c.Scanners.RipgrepBinary == "" {
		c.Scanners.RipgrepBinary = "rg"
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = "info"
	}
	if c.Logging.Filename == "" {
		c.Logging.Filename = "ruleconv.log"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = "logs"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
}
