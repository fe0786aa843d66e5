package utils

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrHelp is returned by ProcessCommandLineArgs when --help or -h
// was given.
var ErrHelp = errors.New("help requested")

// Options are the settings a sample accepts on its command line.
type Options struct {
	// Lights is the initial light count; 0 leaves the choice to
	// the renderer.
	Lights int
	Seed   uint64

	Validation        bool
	PipelineCachePath string

	Width  int
	Height int
}

// DefaultOptions returns the options used when no argument is given.
func DefaultOptions() Options {
	return Options{
		Seed:              DefaultSeed,
		Validation:        true,
		PipelineCachePath: DefaultPipelineCacheFile,
		Width:             DefaultWindowWidth,
		Height:            DefaultWindowHeight,
	}
}

// ProcessCommandLineArgs parses args, which excludes the program
// name. Values follow their option either as the next argument or
// after an equals sign.
func ProcessCommandLineArgs(args []string) (Options, error) {
	opts := DefaultOptions()

	for i := 0; i < len(args); i++ {
		arg := args[i]

		name, value, hasValue := strings.Cut(arg, "=")
		next := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(args) {
				return "", errors.Newf("option %s needs a value", name)
			}
			i++
			return args[i], nil
		}

		var err error
		switch name {
		case "--help", "-h":
			return opts, ErrHelp
		case "--no-validation":
			opts.Validation = false
		case "--lights":
			opts.Lights, err = intValue(name, next)
			if err == nil && opts.Lights <= 0 {
				err = errors.Newf("option %s must be positive, got %d", name, opts.Lights)
			}
		case "--seed":
			var v string
			v, err = next()
			if err == nil {
				opts.Seed, err = strconv.ParseUint(v, 10, 64)
				err = errors.Wrapf(err, "option %s", name)
			}
		case "--pipeline-cache":
			opts.PipelineCachePath, err = next()
		case "--width":
			opts.Width, err = intValue(name, next)
		case "--height":
			opts.Height, err = intValue(name, next)
		default:
			return opts, errors.Newf("unrecognized option: %s (use --help or -h for the option list)", arg)
		}
		if err != nil {
			return opts, err
		}
	}

	if opts.Width <= 0 || opts.Height <= 0 {
		return opts, errors.Newf("window size %dx%d", opts.Width, opts.Height)
	}
	return opts, nil
}

func intValue(name string, next func() (string, error)) (int, error) {
	v, err := next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "option %s", name)
	}
	return n, nil
}

// PrintUsage writes the option list to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "\nOptions")
	fmt.Fprintln(w, "\t--lights N")
	fmt.Fprintln(w, "\t\tInitial number of lights, clamped to the supported range")
	fmt.Fprintln(w, "\t--seed N")
	fmt.Fprintln(w, "\t\tSeed of the light generator")
	fmt.Fprintln(w, "\t--no-validation")
	fmt.Fprintln(w, "\t\tDo not enable the Khronos validation layer")
	fmt.Fprintln(w, "\t--pipeline-cache PATH")
	fmt.Fprintf(w, "\t\tPipeline cache file (default %s, empty to disable)\n", DefaultPipelineCacheFile)
	fmt.Fprintln(w, "\t--width N, --height N")
	fmt.Fprintf(w, "\t\tInitial window size (default %dx%d)\n", DefaultWindowWidth, DefaultWindowHeight)
}
