package pin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a pin file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pin file %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("pin file %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates pin file content.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if errs := Validate(&f); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return &f, nil
}

// Encode writes f as YAML to w.
func Encode(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding pin file: %w", err)
	}
	return enc.Close()
}

// Save writes a pin file atomically using a temp file and rename.
func Save(path string, f *File) error {
	if errs := Validate(f); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	var buf strings.Builder
	if err := Encode(&buf, f); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp pin file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(buf.String()); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp pin file %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp pin file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp pin file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp pin file to %s: %w", path, err)
	}
	return nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pin file validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a pin file for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(f *File) []string {
	if f == nil {
		return []string{"pin file is empty"}
	}

	var errs []string
	if f.Version != FormatVersion {
		errs = append(errs, fmt.Sprintf("unsupported version %d (only version %d is supported)", f.Version, FormatVersion))
	}
	if err := f.Descriptor().Validate(); err != nil {
		errs = append(errs, "build: "+err.Error())
	}
	return errs
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
