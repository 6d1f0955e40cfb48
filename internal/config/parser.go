package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the platform table out of the Lua state.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile parses the Lua config at path on top of the defaults.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(data) > maxConfigSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s exceeds %d bytes", path, maxConfigSize),
		}
	}

	return p.ParseString(ctx, string(data))
}

// ParseString parses a Lua config from a string on top of the defaults.
// This is useful for testing and in-memory config generation.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM(ctx)
	defer L.Close()

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global "paperfetch" table over the defaults.
func extractConfig(L *lua.LState) (*Config, error) {
	root := L.GetGlobal(luaGlobalPaperfetch)
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'paperfetch' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}
	table := root.(*lua.LTable)
	cfg := Default()

	strFields := []struct {
		name string
		dst  *string
	}{
		{luaFieldProject, &cfg.Project},
		{luaFieldAPIURL, &cfg.APIURL},
		{luaFieldDest, &cfg.Dest},
		{luaFieldArtifact, &cfg.ArtifactName},
		{luaFieldChannel, &cfg.Channel},
		{luaFieldUserAgent, &cfg.UserAgent},
	}
	for _, f := range strFields {
		if err := readString(table, f.name, f.name, f.dst); err != nil {
			return nil, err
		}
	}

	if retryVal := table.RawGetString(luaFieldRetry); retryVal.Type() != lua.LTNil {
		retryTable, ok := retryVal.(*lua.LTable)
		if !ok {
			return nil, fieldTypeError(luaFieldRetry, "table", retryVal)
		}
		if err := extractRetry(retryTable, &cfg.Retry); err != nil {
			return nil, err
		}
	}

	if verifyVal := table.RawGetString(luaFieldVerify); verifyVal.Type() != lua.LTNil {
		verifyTable, ok := verifyVal.(*lua.LTable)
		if !ok {
			return nil, fieldTypeError(luaFieldVerify, "table", verifyVal)
		}
		if err := readString(verifyTable, luaFieldKeyring, luaFieldVerify+"."+luaFieldKeyring, &cfg.Verify.Keyring); err != nil {
			return nil, err
		}
		if err := readString(verifyTable, luaFieldSigSuffix, luaFieldVerify+"."+luaFieldSigSuffix, &cfg.Verify.SignatureSuffix); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}

	return cfg, nil
}

// extractRetry reads the retry sub-table.
func extractRetry(table *lua.LTable, rc *RetryConfig) error {
	if v := table.RawGetString(luaFieldRetries); v.Type() != lua.LTNil {
		n, ok := v.(lua.LNumber)
		if !ok {
			return fieldTypeError(luaFieldRetry+"."+luaFieldRetries, "number", v)
		}
		if float64(n) != float64(int(n)) {
			return &ParseError{Message: "invalid retry." + luaFieldRetries, Detail: fmt.Sprintf("expected integer, got %v", n)}
		}
		rc.Retries = int(n)
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{luaFieldInitial, &rc.InitialBackoff},
		{luaFieldMaxBackoff, &rc.MaxBackoff},
		{luaFieldAttempt, &rc.AttemptTimeout},
		{luaFieldDownload, &rc.DownloadTimeout},
	}
	for _, d := range durations {
		v := table.RawGetString(d.name)
		if v.Type() == lua.LTNil {
			continue
		}
		parsed, err := luaDuration(v)
		if err != nil {
			return &ParseError{Message: "invalid " + luaFieldRetry + "." + d.name, Detail: err.Error()}
		}
		*d.dst = parsed
	}
	return nil
}

// readString copies a string field when present.
func readString(table *lua.LTable, key, path string, dst *string) error {
	v := table.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTString:
		*dst = strings.TrimSpace(v.String())
		return nil
	default:
		return fieldTypeError(path, "string", v)
	}
}

// luaDuration accepts a Go duration string or a number of seconds.
func luaDuration(v lua.LValue) (time.Duration, error) {
	switch val := v.(type) {
	case lua.LString:
		return time.ParseDuration(string(val))
	case lua.LNumber:
		return time.Duration(float64(val) * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("expected duration string or seconds, got %s", v.Type())
	}
}

func fieldTypeError(path, want string, got lua.LValue) error {
	return &ParseError{
		Message: "invalid " + path,
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		// Extract the most relevant part of the error
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
