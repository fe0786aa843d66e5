package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestProcessCommandLineArgsDefaults(t *testing.T) {
	opts, err := ProcessCommandLineArgs(nil)
	if err != nil {
		t.Fatalf("ProcessCommandLineArgs: unexpected error: %v", err)
	}
	if opts != DefaultOptions() {
		t.Fatalf("got %+v, want %+v", opts, DefaultOptions())
	}
	if !opts.Validation || opts.Lights != 0 {
		t.Fatalf("defaults %+v", opts)
	}
}

func TestProcessCommandLineArgs(t *testing.T) {
	opts, err := ProcessCommandLineArgs([]string{
		"--lights", "2500",
		"--seed=42",
		"--no-validation",
		"--pipeline-cache", "",
		"--width", "640",
		"--height=480",
	})
	if err != nil {
		t.Fatalf("ProcessCommandLineArgs: unexpected error: %v", err)
	}

	want := Options{
		Lights:            2500,
		Seed:              42,
		Validation:        false,
		PipelineCachePath: "",
		Width:             640,
		Height:            480,
	}
	if opts != want {
		t.Fatalf("got %+v, want %+v", opts, want)
	}
}

func TestProcessCommandLineArgsErrors(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"--bogus"}, "unrecognized option"},
		{[]string{"--lights"}, "needs a value"},
		{[]string{"--lights", "many"}, "--lights"},
		{[]string{"--lights", "-5"}, "must be positive"},
		{[]string{"--seed", "-1"}, "--seed"},
		{[]string{"--width", "0"}, "window size"},
	}
	for _, c := range cases {
		_, err := ProcessCommandLineArgs(c.args)
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("ProcessCommandLineArgs(%q): got %v, want an error containing %q", c.args, err, c.want)
		}
	}
}

func TestProcessCommandLineArgsHelp(t *testing.T) {
	for _, arg := range []string{"--help", "-h"} {
		_, err := ProcessCommandLineArgs([]string{"--lights", "200", arg, "--bogus"})
		if !errors.Is(err, ErrHelp) {
			t.Errorf("%s: got %v, want ErrHelp", arg, err)
		}
	}

	var buf bytes.Buffer
	PrintUsage(&buf)
	for _, option := range []string{"--lights", "--seed", "--no-validation", "--pipeline-cache", "--width"} {
		if !strings.Contains(buf.String(), option) {
			t.Errorf("usage does not mention %s", option)
		}
	}
}
