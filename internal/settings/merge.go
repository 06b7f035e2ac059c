// Package settings writes the backend endpoints into the alert-top config
// file without disturbing the rest of it.
package settings

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/nixlim/alert-top/internal/config"
)

// MergeResult classifies what Merge did.
type MergeResult int

const (
	MergeSuccess MergeResult = iota
	MergeAlreadyConfigured
	MergeError
)

func (r MergeResult) String() string {
	switch r {
	case MergeSuccess:
		return "success"
	case MergeAlreadyConfigured:
		return "already configured"
	default:
		return "error"
	}
}

// MergeOptions controls Merge.
type MergeOptions struct {
	// Path is the config file. Empty means config.DefaultPath().
	Path string

	BaseURL string
	// PushURL defaults to BaseURL.
	PushURL string

	// Overwrite replaces keys that already hold a different value. Without
	// it such keys are reported as warnings and left alone.
	Overwrite bool
}

// MergeOutput is the result of Merge.
type MergeOutput struct {
	Result   MergeResult
	Messages []string
	Warnings []string
	Err      error
}

// Required returns the dotted config keys Merge ensures, with their values.
// The API token is never written; it belongs in the environment.
func Required(opts MergeOptions) map[string]string {
	push := opts.PushURL
	if push == "" {
		push = opts.BaseURL
	}
	return map[string]string{
		"backend.base_url": opts.BaseURL,
		"push.url":         push,
	}
}

// Merge reads the config file, sets the backend and push URLs and writes
// the file back atomically (temp file + rename).
//
//   - File not found: writes the full default config with the URLs set.
//   - Malformed TOML: saves a .bak copy and returns an error.
//   - All keys already correct: returns MergeAlreadyConfigured.
func Merge(opts MergeOptions) MergeOutput {
	path := opts.Path
	if path == "" {
		path = config.DefaultPath()
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return MergeOutput{Result: MergeError, Err: errors.New("a backend URL is required")}
	}
	required := Required(opts)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return createConfigFile(path, opts)
		}
		if errors.Is(err, fs.ErrPermission) {
			return MergeOutput{Result: MergeError, Err: errors.Newf("permission denied reading %s", path)}
		}
		return MergeOutput{Result: MergeError, Err: errors.Wrap(err, "reading config file")}
	}

	indent := detectIndent(data)

	doc := make(map[string]any)
	if _, err := toml.Decode(string(data), &doc); err != nil {
		bakPath := path + ".bak"
		if bakErr := os.WriteFile(bakPath, data, 0o644); bakErr != nil {
			return MergeOutput{
				Result: MergeError,
				Err:    errors.Wrap(bakErr, "config file contains invalid TOML and backup failed"),
			}
		}
		return MergeOutput{
			Result:   MergeError,
			Err:      errors.Newf("config file contains invalid TOML (backup saved to %s)", bakPath),
			Messages: []string{fmt.Sprintf("Backup saved to %s", bakPath)},
		}
	}

	var (
		messages   []string
		warnings   []string
		allCorrect = true
	)
	for _, key := range sortedKeys(required) {
		want := required[key]
		section, name, _ := strings.Cut(key, ".")
		table, ok := doc[section].(map[string]any)
		if !ok {
			table = make(map[string]any)
			doc[section] = table
		}

		existing, exists := table[name]
		if !exists {
			table[name] = want
			allCorrect = false
			messages = append(messages, fmt.Sprintf("Added %s = %q", key, want))
			continue
		}

		got, _ := existing.(string)
		if got == want {
			continue
		}
		if opts.Overwrite {
			table[name] = want
			allCorrect = false
			messages = append(messages, fmt.Sprintf("Updated %s from %q to %q", key, got, want))
			continue
		}
		warnings = append(warnings, fmt.Sprintf("Warning: %s is set to %q (wanted %q), not overwriting", key, got, want))
	}

	if allCorrect {
		out := MergeOutput{Result: MergeAlreadyConfigured, Warnings: warnings}
		if len(warnings) == 0 {
			out.Messages = []string{"Backend endpoints are already configured"}
		}
		return out
	}

	if err := writeConfigAtomic(path, doc, indent); err != nil {
		return MergeOutput{Result: MergeError, Err: errors.Wrap(err, "writing config file")}
	}
	return MergeOutput{Result: MergeSuccess, Messages: messages, Warnings: warnings}
}

// createConfigFile writes the defaults with the requested URLs.
func createConfigFile(path string, opts MergeOptions) MergeOutput {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return MergeOutput{Result: MergeError, Err: errors.Newf("permission denied creating directory %s", dir)}
		}
		return MergeOutput{Result: MergeError, Err: errors.Wrapf(err, "creating directory %s", dir)}
	}

	required := Required(opts)
	cfg := config.DefaultConfig()
	cfg.Backend.BaseURL = required["backend.base_url"]
	cfg.Push.URL = required["push.url"]

	if err := writeConfigAtomic(path, cfg, "  "); err != nil {
		return MergeOutput{Result: MergeError, Err: errors.Wrap(err, "creating config file")}
	}
	return MergeOutput{
		Result:   MergeSuccess,
		Messages: []string{fmt.Sprintf("Created %s", path)},
	}
}

// writeConfigAtomic encodes v as TOML into a temp file next to path and
// renames it into place.
func writeConfigAtomic(path string, v any, indent string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = indent
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encoding TOML")
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".config-*.toml.tmp")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return errors.Newf("permission denied writing to %s", dir)
		}
		return errors.Wrap(err, "creating temp file")
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(buf.Bytes()); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}

	mode := fs.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	_ = os.Chmod(tmpPath, mode)

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "renaming temp file to %s", path)
	}
	tmpPath = ""
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
