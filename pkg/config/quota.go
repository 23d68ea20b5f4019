package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Duration lets TOML carry Go duration strings ("3h", "168h").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for toml decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// QuotaEntry is one model's quota row in the TOML table. Alias entries
// set alias_of and auto_throttle instead of a quota of their own.
type QuotaEntry struct {
	Requests     float64  `toml:"requests"`
	Window       Duration `toml:"window"`
	Burst        float64  `toml:"burst"`
	AliasOf      string   `toml:"alias_of"`
	AutoThrottle bool     `toml:"auto_throttle"`
}

// QuotaTable is the parsed model quota file.
type QuotaTable struct {
	Models map[string]QuotaEntry `toml:"models"`
}

// LoadQuotas reads the TOML quota table at path. An empty path returns
// the built-in defaults.
func LoadQuotas(path string) (*QuotaTable, error) {
	if path == "" {
		return DefaultQuotas(), nil
	}
	var table QuotaTable
	if _, err := toml.DecodeFile(path, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

// DefaultQuotas mirrors the upstream source's published model limits:
// gpt4o 150 per 3 hours, gpt45 50 per week, o3_mini_high 50 per day,
// and gpt4o_mini auto-throttled onto gpt4o's bucket.
func DefaultQuotas() *QuotaTable {
	return &QuotaTable{Models: map[string]QuotaEntry{
		"gpt4o":        {Requests: 150, Window: Duration(3 * time.Hour), Burst: 10},
		"gpt45":        {Requests: 50, Window: Duration(7 * 24 * time.Hour), Burst: 5},
		"o3_mini_high": {Requests: 50, Window: Duration(24 * time.Hour), Burst: 3},
		"gpt4o_mini":   {AliasOf: "gpt4o", AutoThrottle: true},
	}}
}
