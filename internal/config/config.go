package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// DefaultPlatform is assumed for any player entry that does not name one.
const DefaultPlatform = "pc"

// ErrNotFound distinguishes a missing config file from a malformed one.
var ErrNotFound = errors.New("config not found")

// Player is one configured lookup target: a name plus the platform that
// scopes it (pc, psn, xbl).
type Player struct {
	Name     string `json:"name" yaml:"name"`
	Platform string `json:"platform" yaml:"platform"`
}

// LoadFile reads the player list from a YAML or JSON file, chosen by
// extension. The document must be either a list of player entries or an
// object with a "players" key holding that list.
func LoadFile(path string) ([]Player, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var doc any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q: use .yaml or .json", ext)
	}

	return playersFromDoc(doc)
}

// ParseInline parses the --players override "name1,platform1;name2,platform2".
// Empty segments are skipped; a missing or empty platform defaults to pc.
func ParseInline(s string) []Player {
	var out []Player
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, platform := part, ""
		if i := strings.Index(part, ","); i >= 0 {
			name, platform = part[:i], part[i+1:]
		}
		name = strings.TrimSpace(name)
		platform = strings.TrimSpace(platform)
		if platform == "" {
			platform = DefaultPlatform
		}
		out = append(out, Player{Name: name, Platform: platform})
	}
	return out
}

func playersFromDoc(doc any) ([]Player, error) {
	if obj, ok := doc.(map[string]any); ok {
		if inner, present := obj["players"]; present {
			doc = inner
		}
	}
	list, ok := doc.([]any)
	if !ok {
		return nil, errors.New("config must contain a 'players' list")
	}

	out := make([]Player, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid player entry: %v", entry)
		}
		name, present := obj["name"]
		if !present {
			return nil, fmt.Errorf("invalid player entry: %v", entry)
		}
		p := Player{Name: fmt.Sprintf("%v", name), Platform: DefaultPlatform}
		if platform, present := obj["platform"]; present {
			p.Platform = fmt.Sprintf("%v", platform)
		}
		out = append(out, p)
	}
	return out, nil
}
