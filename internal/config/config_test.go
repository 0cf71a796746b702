package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	c := New()
	c.Targeting.Region = "US"
	c.Targeting.ProjectGUID = "11111111-2222-3333-4444-555555555555"
	c.Targeting.ModelGUID = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	return c
}

func TestValidate_Defaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Sync.WorksetMode != "all" {
		t.Errorf("WorksetMode = %s, want all", c.Sync.WorksetMode)
	}
	if c.Output.ConsoleFormat != "text" {
		t.Errorf("ConsoleFormat = %s, want text", c.Output.ConsoleFormat)
	}
}

func TestValidate_RequiredTargeting(t *testing.T) {
	cases := []struct {
		name  string
		strip func(*Config)
	}{
		{"region", func(c *Config) { c.Targeting.Region = "" }},
		{"project", func(c *Config) { c.Targeting.ProjectGUID = "" }},
		{"model", func(c *Config) { c.Targeting.ModelGUID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.strip(c)
			if err := c.Validate(); err == nil {
				t.Fatalf("missing %s not rejected", tc.name)
			}
		})
	}
}

func TestValidate_WorksetModes(t *testing.T) {
	c := validConfig()
	c.Sync.WorksetMode = "Last-Viewed"
	if err := c.Validate(); err != nil {
		t.Fatalf("mixed-case mode rejected: %v", err)
	}
	if c.Sync.WorksetMode != "last-viewed" {
		t.Errorf("mode not normalized: %s", c.Sync.WorksetMode)
	}

	c = validConfig()
	c.Sync.WorksetMode = "some"
	if err := c.Validate(); err == nil {
		t.Fatal("unknown workset mode not rejected")
	}

	c = validConfig()
	c.Sync.WorksetMode = "specify"
	if err := c.Validate(); err == nil {
		t.Fatal("specify without workset names not rejected")
	}

	c = validConfig()
	c.Sync.WorksetMode = "specify"
	c.Sync.Worksets = []string{"Shell, Core"}
	if err := c.Validate(); err != nil {
		t.Fatalf("specify with names rejected: %v", err)
	}
	if len(c.Sync.Worksets) != 2 {
		t.Errorf("comma list not split: %v", c.Sync.Worksets)
	}

	c = validConfig()
	c.Sync.Worksets = []string{"Shell"}
	if err := c.Validate(); err == nil {
		t.Fatal("workset names without specify mode not rejected")
	}
}

func TestValidate_NumericBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"concurrency", func(c *Config) { c.Sync.Concurrency = 0 }},
		{"discovery concurrency", func(c *Config) { c.Sync.DiscoveryConcurrency = 0 }},
		{"retries", func(c *Config) { c.Sync.MaxRetryAttempts = -1 }},
		{"backoff", func(c *Config) { c.Sync.RetryBackoffBase = -time.Second }},
		{"link delay", func(c *Config) { c.Sync.LinkReloadDelay = -time.Second }},
		{"timeout", func(c *Config) { c.Runtime.Timeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatalf("invalid %s not rejected", tc.name)
			}
		})
	}
}

func TestValidate_OutFormatInference(t *testing.T) {
	c := validConfig()
	c.Output.Out = "run.ndjson"
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Output.OutFormat != "ndjson" {
		t.Errorf("OutFormat = %s, want ndjson", c.Output.OutFormat)
	}

	c = validConfig()
	c.Output.Out = "run.txt"
	if err := c.Validate(); err == nil {
		t.Fatal("uninferrable extension not rejected")
	}

	c = validConfig()
	c.Output.Out = "run.dat"
	c.Output.OutFormat = "json"
	if err := c.Validate(); err != nil {
		t.Fatalf("explicit format rejected: %v", err)
	}
}

func TestValidate_SelectionCommaSplit(t *testing.T) {
	c := validConfig()
	c.Selection.Models = []string{"a,b", " c "}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := strings.Join(c.Selection.Models, "|"); got != "a|b|c" {
		t.Errorf("selection = %s, want a|b|c", got)
	}
}
