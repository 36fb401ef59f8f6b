package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		FeedBaseURL:    "https://api.weather.gov",
		FeedArea:       "KS",
		FeedGridpoint:  "ICT/60,48",
		Location:       "Wichita, KS",
		PublishBaseURL: "https://social.example",
		PublishToken:   "token-1",
		Publisher:      "statusapi",
		StatsBackend:   "file",
		StatsPath:      "data/stats.json",
		ForecastSpec:   "0 */6 * * *",
		AlertSpec:      "*/10 * * * *",
		Grace:          10 * time.Minute,
		MaxAttempts:    3,
		InitialDelay:   0,
		DelayIncrement: 131072 * time.Millisecond,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing feed base url",
			mutate:  func(c *Config) { c.FeedBaseURL = "" },
			wantErr: true,
		},
		{
			name:    "missing area",
			mutate:  func(c *Config) { c.FeedArea = "" },
			wantErr: true,
		},
		{
			name:    "missing location",
			mutate:  func(c *Config) { c.Location = "" },
			wantErr: true,
		},
		{
			name:    "missing publish token",
			mutate:  func(c *Config) { c.PublishToken = "" },
			wantErr: true,
		},
		{
			name:    "bad fatal codes",
			mutate:  func(c *Config) { c.FatalCodes = "422,teapot" },
			wantErr: true,
		},
		{
			name:    "valid fatal codes",
			mutate:  func(c *Config) { c.FatalCodes = "422,451" },
			wantErr: false,
		},
		{
			name:    "unknown stats backend",
			mutate:  func(c *Config) { c.StatsBackend = "etcd" },
			wantErr: true,
		},
		{
			name: "redis backend without addr",
			mutate: func(c *Config) {
				c.StatsBackend = "redis"
				c.RedisAddr = ""
			},
			wantErr: true,
		},
		{
			name: "redis backend with addr and key",
			mutate: func(c *Config) {
				c.StatsBackend = "redis"
				c.RedisAddr = "localhost:6379"
				c.StatsKey = "stormcrier:stats"
			},
			wantErr: false,
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "negative delay increment",
			mutate:  func(c *Config) { c.DelayIncrement = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative grace",
			mutate:  func(c *Config) { c.Grace = -time.Minute },
			wantErr: true,
		},
		{
			name:    "email from without to",
			mutate:  func(c *Config) { c.EmailFrom = "bot@example.com" },
			wantErr: true,
		},
		{
			name: "email from and to together",
			mutate: func(c *Config) {
				c.EmailFrom = "bot@example.com"
				c.EmailTo = "ops@example.com"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseCodes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr bool
	}{
		{name: "empty means defaults", input: "", want: nil, wantErr: false},
		{name: "single code", input: "422", want: []int{422}, wantErr: false},
		{name: "several codes with spaces", input: "401, 403,410", want: []int{401, 403, 410}, wantErr: false},
		{name: "trailing comma", input: "422,", want: []int{422}, wantErr: false},
		{name: "not a number", input: "teapot", wantErr: true},
		{name: "out of range", input: "99", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCodes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCodes() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCodes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	got := ParseList(" kafka-1:9092, kafka-2:9092 ,, ")
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseList() = %v, want %v", got, want)
	}

	if got := ParseList(""); got != nil {
		t.Errorf("ParseList(\"\") = %v, want nil", got)
	}
}

func TestLoadRules(t *testing.T) {
	t.Run("empty path means no rules", func(t *testing.T) {
		rules, err := LoadRules("")
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		if rules != nil {
			t.Errorf("rules = %v, want nil", rules)
		}
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.json")
		doc := `[
			{"restriction": "has", "path": "properties.replacedBy", "keep": false},
			{"restriction": "after", "path": "properties.expires", "value": 0, "keep": true}
		]`
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			t.Fatalf("write rules: %v", err)
		}

		rules, err := LoadRules(path)
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("loaded %d rules, want 2", len(rules))
		}
		if rules[0].Restriction != "has" || rules[0].Keep {
			t.Errorf("first rule = %+v", rules[0])
		}
		if rules[1].Restriction != "after" || !rules[1].Keep {
			t.Errorf("second rule = %+v", rules[1])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadRules(filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Error("expected an error for a missing file")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.json")
		if err := os.WriteFile(path, []byte(`{"not": "a list"`), 0o600); err != nil {
			t.Fatalf("write rules: %v", err)
		}
		if _, err := LoadRules(path); err == nil {
			t.Error("expected an error for malformed JSON")
		}
	})
}
