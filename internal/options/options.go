// Package options parses the jdeser CLI's long options. It is built
// directly on the standard flag package -- which already treats a
// single leading dash the same as a double dash, unlike getopt -- and
// adds one thing flag does not support natively: accepting an
// unambiguous prefix of a long option name in place of its full spelling
// (e.g. "-deb" for "-debug", so long as no other registered flag shares
// that prefix).
package options

import (
	"flag"
	"fmt"
	"sort"
	"strings"
)

// Config holds every parsed CLI option plus the positional file
// arguments.
type Config struct {
	Help  bool
	Debug bool

	NoContent   bool
	NoClasses   bool
	NoInstances bool
	ShowArrays  bool
	NoConnect   bool
	FixNames    bool

	Filter            string
	BlockData         string
	BlockDataManifest string
	MaxBlockSize      int

	Files []string
}

// Parse resolves prefix-abbreviated long options in args against the
// known flag set, then parses them with the standard flag package.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("jdeser", flag.ContinueOnError)
	fs.SetOutput(new(discard))

	cfg := &Config{}
	fs.BoolVar(&cfg.Help, "help", false, "print option help and exit")
	fs.BoolVar(&cfg.Debug, "debug", false, "emit per-step trace")
	fs.BoolVar(&cfg.NoContent, "nocontent", false, "omit content-item listing")
	fs.BoolVar(&cfg.NoClasses, "noclasses", false, "omit class-declaration output")
	fs.BoolVar(&cfg.NoInstances, "noinstances", false, "omit instance dumps")
	fs.BoolVar(&cfg.ShowArrays, "showarrays", false, "include array classes in class output")
	fs.BoolVar(&cfg.NoConnect, "noconnect", false, "skip the reconnection pass")
	fs.BoolVar(&cfg.FixNames, "fixnames", false, "rewrite illegal identifier characters")
	fs.StringVar(&cfg.Filter, "filter", "", "regex of class names to exclude from class output")
	fs.StringVar(&cfg.BlockData, "blockdata", "", "file path: write concatenated block-data bytes")
	fs.StringVar(&cfg.BlockDataManifest, "blockdatamanifest", "", "file path: write one block size per line")
	fs.IntVar(&cfg.MaxBlockSize, "maxblocksize", 0, "reject any single block-data item larger than this many bytes (0: use the library default)")

	expanded, err := expandAbbreviations(args, fs)
	if err != nil {
		return nil, err
	}

	if err := fs.Parse(expanded); err != nil {
		return nil, err
	}

	cfg.Files = fs.Args()
	return cfg, nil
}

// Usage returns the option help text printed by -help.
func Usage() string {
	var sb strings.Builder
	sb.WriteString("usage: jdeser [options] file ...\n\noptions (unambiguous prefixes accepted):\n")
	for _, line := range [][2]string{
		{"-help", "print option help, exit 1"},
		{"-debug", "emit per-step trace"},
		{"-nocontent", "omit content-item listing"},
		{"-noclasses", "omit class-declaration output"},
		{"-noinstances", "omit instance dumps"},
		{"-showarrays", "include array classes in class output"},
		{"-noconnect", "skip reconnection pass"},
		{"-fixnames", "rewrite illegal identifier characters"},
		{"-filter <regex>", "regex of class names to exclude from class output"},
		{"-blockdata <path>", "file path; write concatenated block-data bytes"},
		{"-blockdatamanifest <path>", "file path; write one block size per line"},
		{"-maxblocksize <n>", "reject any single block-data item larger than n bytes"},
	} {
		fmt.Fprintf(&sb, "  %-28s %s\n", line[0], line[1])
	}
	return sb.String()
}

// expandAbbreviations rewrites each "-name" or "-name=value" token whose
// name is a strict, unambiguous prefix of exactly one flag registered on
// fs into that flag's full name. Tokens that already name a registered
// flag exactly, that don't start with '-', or that come after a bare
// "--" terminator are passed through unchanged.
func expandAbbreviations(args []string, fs *flag.FlagSet) ([]string, error) {
	names := registeredNames(fs)

	out := make([]string, 0, len(args))
	literal := false
	for _, arg := range args {
		if literal || arg == "--" {
			out = append(out, arg)
			if arg == "--" {
				literal = true
			}
			continue
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			out = append(out, arg)
			continue
		}

		body := strings.TrimLeft(arg, "-")
		name, value, hasValue := body, "", false
		if idx := strings.IndexByte(body, '='); idx >= 0 {
			name, value, hasValue = body[:idx], body[idx+1:], true
		}

		full, err := resolveAbbreviation(name, names)
		if err != nil {
			return nil, err
		}

		if hasValue {
			out = append(out, "-"+full+"="+value)
		} else {
			out = append(out, "-"+full)
		}
	}
	return out, nil
}

func registeredNames(fs *flag.FlagSet) []string {
	var names []string
	fs.VisitAll(func(f *flag.Flag) { names = append(names, f.Name) })
	sort.Strings(names)
	return names
}

func resolveAbbreviation(name string, names []string) (string, error) {
	for _, n := range names {
		if n == name {
			return n, nil
		}
	}

	var matches []string
	for _, n := range names {
		if strings.HasPrefix(n, name) {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("unrecognized option -%s", name)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("option -%s is ambiguous: matches %s", name, strings.Join(matches, ", "))
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
