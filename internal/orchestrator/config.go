package orchestrator

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

// Value is one typed setting value: a bool, int64, float64, string, or
// []string (comma-separated lists), in that detection order.
type Value struct {
	Bool    bool
	Int     int64
	Float   float64
	Str     string
	List    []string
	Kind    ValueKind
}

// ValueKind identifies which field of Value holds the parsed result.
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindList
)

// Config is a parsed xpuSetting.conf: `[section] key = value` groups with
// per-value type inference.
type Config struct {
	sections map[string]map[string]Value
}

// Get returns the value of key within section, or the zero Value and false
// if either is absent.
func (c *Config) Get(section, key string) (Value, bool) {
	sec, ok := c.sections[section]
	if !ok {
		return Value{}, false
	}
	v, ok := sec[key]
	return v, ok
}

// Sections lists the parsed section names.
func (c *Config) Sections() []string {
	names := make([]string, 0, len(c.sections))
	for name := range c.sections {
		names = append(names, name)
	}
	return names
}

// LoadConfig parses an INI-like file of `[section]` headers and
// `key = value` lines, typing each value by inspection: `true`/`false` as
// bool, a bare integer as int, a bare decimal as float, a comma-separated
// run as a list, otherwise a plain string. `;` and `#` start a comment.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrap("orchestrator", perr.FileNotFound, "failed to open config", err)
	}
	defer f.Close()

	cfg := &Config{sections: map[string]map[string]Value{}}
	section := ""
	cfg.sections[section] = map[string]Value{}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := cfg.sections[section]; !ok {
				cfg.sections[section] = map[string]Value{}
			}
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, perr.New("orchestrator", perr.CorruptedFile, fmt.Sprintf("malformed config line %d: missing '='", lineNo))
		}
		key := strings.TrimSpace(line[:idx])
		raw := strings.TrimSpace(line[idx+1:])
		cfg.sections[section][key] = parseValue(raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, perr.Wrap("orchestrator", perr.FileReadError, "failed reading config", err)
	}
	return cfg, nil
}

func parseValue(raw string) Value {
	switch strings.ToLower(raw) {
	case "true":
		return Value{Bool: true, Kind: KindBool}
	case "false":
		return Value{Bool: false, Kind: KindBool}
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Value{Int: i, Kind: KindInt}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Value{Float: f, Kind: KindFloat}
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return Value{List: parts, Kind: KindList}
	}
	return Value{Str: raw, Kind: KindString}
}
