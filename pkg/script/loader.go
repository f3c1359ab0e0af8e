package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Loader reads key scripts from YAML and CUE files.
type Loader struct {
	logger   zerolog.Logger
	validate *validator.Validate
	cue      *cue.Context
}

// NewLoader creates a new script loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:   logger.With().Str("component", "script-loader").Logger(),
		validate: validator.New(),
		cue:      cuecontext.New(),
	}
}

// IsScriptFile reports whether path has a supported script extension.
func IsScriptFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// LoadFile loads and validates a single script file.
func (l *Loader) LoadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	s, err := l.Parse(data, path)
	if err != nil {
		return nil, err
	}

	l.logger.Debug().
		Str("path", path).
		Str("script", s.Name).
		Int("steps", len(s.Steps)).
		Msg("Script loaded")

	return s, nil
}

// Parse decodes a script. The format is chosen by the extension of path.
func (l *Loader) Parse(data []byte, path string) (*Script, error) {
	var s Script
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	case ".cue":
		err = l.decodeCUE(data, path, &s)
	default:
		err = fmt.Errorf("unsupported script format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	s.Path = path
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if err := l.validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid script %s: %w", path, err)
	}
	if err := s.checkKeys(); err != nil {
		return nil, fmt.Errorf("invalid script %s: %w", path, err)
	}

	return &s, nil
}

// decodeCUE evaluates a CUE script. The script may be the whole document
// or a top-level "script" field.
func (l *Loader) decodeCUE(data []byte, path string, s *Script) error {
	val := l.cue.CompileBytes(data, cue.Filename(path))
	if err := val.Err(); err != nil {
		return err
	}

	if sv := val.LookupPath(cue.ParsePath("script")); sv.Exists() {
		val = sv
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return err
	}

	raw, err := val.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, s)
}

// LoadPaths loads scripts from files and directories. Directories are
// walked recursively for .yaml, .yml and .cue files. Every file is
// attempted; the errors of all broken files are returned together.
func (l *Loader) LoadPaths(paths []string) ([]*Script, error) {
	var scripts []*Script
	var errs []error

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to stat path: %w", err))
			continue
		}

		if !info.IsDir() {
			s, err := l.LoadFile(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			scripts = append(scripts, s)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !IsScriptFile(p) {
				return nil
			}

			s, err := l.LoadFile(p)
			if err != nil {
				l.logger.Warn().Err(err).Str("path", p).Msg("Failed to load script file")
				errs = append(errs, err)
				return nil
			}
			scripts = append(scripts, s)
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to walk directory %s: %w", path, err))
		}
	}

	l.logger.Info().
		Int("total", len(scripts)).
		Int("sources", len(paths)).
		Int("failed", len(errs)).
		Msg("Scripts loaded from paths")

	return scripts, errors.Join(errs...)
}
