package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// settings holds every command line option after flags and the config file
// have been merged.
type settings struct {
	File          string
	K             int
	N             int
	ErrorRate     float64
	DiskGiB       uint64
	MemoryGiB     uint64
	Verbose       bool
	Config        string
	WorkDir       string
	Filter        string
	FilterStorage string
	Codec         string
	Format        string
	LogLevel      string
}

// fileConfig is the config file layout. Keys match the long flag names;
// absent keys leave the setting alone.
type fileConfig struct {
	File          *string  `yaml:"file-name" toml:"file-name"`
	K             *int     `yaml:"kmer-size" toml:"kmer-size"`
	N             *int     `yaml:"most-frequent" toml:"most-frequent"`
	ErrorRate     *float64 `yaml:"error-rate" toml:"error-rate"`
	DiskGiB       *uint64  `yaml:"target-disk" toml:"target-disk"`
	MemoryGiB     *uint64  `yaml:"target-memory" toml:"target-memory"`
	Verbose       *bool    `yaml:"verbose" toml:"verbose"`
	WorkDir       *string  `yaml:"work-dir" toml:"work-dir"`
	Filter        *string  `yaml:"filter" toml:"filter"`
	FilterStorage *string  `yaml:"filter-storage" toml:"filter-storage"`
	Codec         *string  `yaml:"codec" toml:"codec"`
	Format        *string  `yaml:"format" toml:"format"`
	LogLevel      *string  `yaml:"log-level" toml:"log-level"`
}

// loadConfig reads a YAML or TOML config file, chosen by extension.
// Unknown keys are rejected.
func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &usageError{errors.Wrap(err, "read config")}
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return nil, &usageError{errors.Wrapf(err, "parse config %s", path)}
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return nil, &usageError{errors.Wrapf(err, "parse config %s", path)}
		}
	default:
		return nil, usagef("config %s: unsupported extension %q (want .yaml, .yml or .toml)", path, ext)
	}
	return &fc, nil
}

// apply copies every value set in the file into s, except those whose flag
// was given explicitly on the command line.
func (fc *fileConfig) apply(s *settings, changed func(flag string) bool) {
	override(changed, "file-name", &s.File, fc.File)
	override(changed, "kmer-size", &s.K, fc.K)
	override(changed, "most-frequent", &s.N, fc.N)
	override(changed, "error-rate", &s.ErrorRate, fc.ErrorRate)
	override(changed, "target-disk", &s.DiskGiB, fc.DiskGiB)
	override(changed, "target-memory", &s.MemoryGiB, fc.MemoryGiB)
	override(changed, "verbose", &s.Verbose, fc.Verbose)
	override(changed, "work-dir", &s.WorkDir, fc.WorkDir)
	override(changed, "filter", &s.Filter, fc.Filter)
	override(changed, "filter-storage", &s.FilterStorage, fc.FilterStorage)
	override(changed, "codec", &s.Codec, fc.Codec)
	override(changed, "format", &s.Format, fc.Format)
	override(changed, "log-level", &s.LogLevel, fc.LogLevel)
}

func override[T any](changed func(string) bool, flag string, dst, src *T) {
	if src != nil && !changed(flag) {
		*dst = *src
	}
}
