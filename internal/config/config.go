// Package config loads the processor configuration from defaults, an
// optional YAML file and BANKLEDGER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: BANKLEDGER_LEDGER__ID sets ledger.id.
const EnvPrefix = "BANKLEDGER_"

// Backend names.
const (
	BackendMemory   = "memory"
	BackendBigQuery = "bigquery"
	BackendNotion   = "notion"
	BackendGCS      = "gcs"
	BackendDir      = "dir"
	BackendWebhook  = "webhook"
	BackendGemini   = "gemini"
	BackendNone     = "none"
)

// Config is the immutable processor configuration.
type Config struct {
	Senders    []string         `koanf:"senders"`
	Ledger     LedgerConfig     `koanf:"ledger"`
	Labels     LabelConfig      `koanf:"labels"`
	Category   string           `koanf:"category"`
	Source     SourceConfig     `koanf:"source"`
	Escalation EscalationConfig `koanf:"escalation"`
	Dedup      DedupConfig      `koanf:"dedup"`
	Log        LogConfig        `koanf:"log"`
	Schedule   string           `koanf:"schedule"`
	HTTP       HTTPConfig       `koanf:"http"`
}

// LedgerConfig locates the ledger store.
type LedgerConfig struct {
	Backend     string `koanf:"backend"`
	ID          string `koanf:"id"` // table name or Notion database id
	Project     string `koanf:"project"`
	Dataset     string `koanf:"dataset"`
	NotionToken string `koanf:"notion_token"`
}

type LabelConfig struct {
	Processed string `koanf:"processed"`
	Failed    string `koanf:"failed"`
}

type SourceConfig struct {
	Backend string `koanf:"backend"`
	Bucket  string `koanf:"bucket"`
	Prefix  string `koanf:"prefix"`
	Dir     string `koanf:"dir"`
}

type EscalationConfig struct {
	Backend     string        `koanf:"backend"`
	URL         string        `koanf:"url"`
	Instruction string        `koanf:"instruction"`
	Model       string        `koanf:"model"`
	Timeout     time.Duration `koanf:"timeout"`
}

// DedupConfig tunes the fuzzy duplicate rule.
type DedupConfig struct {
	MaxFuzzyLength    int     `koanf:"max_fuzzy_length"`
	MaxDistance       int     `koanf:"max_distance"`
	AmountTolerance   float64 `koanf:"amount_tolerance"`
	StrictLengthBound bool    `koanf:"strict_length_bound"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type HTTPConfig struct {
	Port  string `koanf:"port"`
	Token string `koanf:"token"` // bearer token for the API; empty disables auth
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"ledger.backend":            BackendMemory,
		"ledger.dataset":            "finance",
		"labels.processed":          "BankTransactions/Processed",
		"labels.failed":             "BankTransactions/Failed",
		"category":                  "Bank Transaction",
		"source.backend":            BackendDir,
		"source.dir":                "./inbox",
		"escalation.backend":        BackendNone,
		"escalation.model":          "gemini-2.5-flash",
		"escalation.timeout":        "30s",
		"dedup.max_fuzzy_length":    10,
		"dedup.max_distance":        2,
		"dedup.amount_tolerance":    0.001,
		"dedup.strict_length_bound": false,
		"log.level":                 "info",
		"log.format":                "console",
		"schedule":                  "@every 15m",
		"http.port":                 "8080",
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("Load: defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("Load: reading %s: %w", path, err)
		}
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if key == "senders" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("Load: environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal: %w", err)
	}
	cfg.Senders = normalizeSenders(cfg.Senders)

	return cfg, nil
}

// Validate reports every missing or inconsistent setting as one error
// wrapping domain.ErrConfiguration.
func (c Config) Validate() error {
	var errs []error

	if len(c.Senders) == 0 {
		errs = append(errs, errors.New("no recognized senders"))
	}
	if strings.TrimSpace(c.Ledger.ID) == "" {
		errs = append(errs, errors.New("ledger.id is required"))
	}
	switch c.Ledger.Backend {
	case BackendMemory:
	case BackendBigQuery:
		if c.Ledger.Project == "" || c.Ledger.Dataset == "" {
			errs = append(errs, errors.New("ledger.project and ledger.dataset are required for bigquery"))
		}
	case BackendNotion:
		if c.Ledger.NotionToken == "" {
			errs = append(errs, errors.New("ledger.notion_token is required for notion"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger.backend %q", c.Ledger.Backend))
	}

	if strings.TrimSpace(c.Labels.Processed) == "" || strings.TrimSpace(c.Labels.Failed) == "" {
		errs = append(errs, errors.New("labels.processed and labels.failed are required"))
	} else if c.Labels.Processed == c.Labels.Failed {
		errs = append(errs, errors.New("labels.processed and labels.failed must differ"))
	}

	switch c.Source.Backend {
	case BackendDir:
		if c.Source.Dir == "" {
			errs = append(errs, errors.New("source.dir is required for dir"))
		}
	case BackendGCS:
		if c.Source.Bucket == "" {
			errs = append(errs, errors.New("source.bucket is required for gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.backend %q", c.Source.Backend))
	}

	switch c.Escalation.Backend {
	case BackendNone, BackendGemini:
	case BackendWebhook:
		if c.Escalation.URL == "" {
			errs = append(errs, errors.New("escalation.url is required for webhook"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown escalation.backend %q", c.Escalation.Backend))
	}

	if c.Dedup.MaxFuzzyLength < 0 || c.Dedup.MaxDistance < 0 || c.Dedup.AmountTolerance < 0 {
		errs = append(errs, errors.New("dedup settings must not be negative"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
}

// IsRecognizedSender reports whether from, a bare address or a
// "Name <address>" header value, is one of the configured senders.
func (c Config) IsRecognizedSender(from string) bool {
	addr := strings.ToLower(strings.TrimSpace(from))
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = strings.ToLower(parsed.Address)
	}
	for _, s := range c.Senders {
		if s == addr {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSenders(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
