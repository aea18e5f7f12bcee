package main

import "testing"

func TestParseFlags(t *testing.T) {
	opts, path, err := parseFlags([]string{"--config", "/tmp/ms.toml", "--log-level", "debug", "--dev"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if path != "/tmp/ms.toml" || opts.LogLevel != "debug" || !opts.Development {
		t.Fatalf("unexpected parse result %+v %q", opts, path)
	}
}

func TestParseFlagsRejectsArguments(t *testing.T) {
	if _, _, err := parseFlags([]string{"extra"}); err == nil {
		t.Fatal("expected error for positional arguments")
	}
}
