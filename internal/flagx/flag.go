// Package flagx splits a single command line between several flag sets, so
// the config loader and each subcommand can parse only the flags they own.
package flagx

import (
	"flag"
	"strings"
)

// Known lists the flags a component owns. Valued flags take an argument
// ("-a host" or "-a=host"); Bool flags never consume the next token.
type Known struct {
	Valued []string
	Bool   []string
}

func (k Known) lookup() map[string]bool {
	m := make(map[string]bool, len(k.Valued)+len(k.Bool))
	for _, f := range k.Valued {
		m[f] = true
	}
	for _, f := range k.Bool {
		m[f] = false
	}
	return m
}

// Split partitions args into the flags listed in k (with their values) and
// everything else, preserving order in both. Tokens after a bare "--" always
// go to rest.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
func Split(args []string, k Known) (known, rest []string) {
	owned := k.lookup()

	known = make([]string, 0, len(args))
	rest = make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			rest = append(rest, args[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := owned[name]; ok {
				known = append(known, arg)
			} else {
				rest = append(rest, arg)
			}
			continue
		}

		valued, ok := owned[arg]
		if !ok {
			rest = append(rest, arg)
			continue
		}

		known = append(known, arg)
		if valued && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			known = append(known, args[i+1])
			i++
		}
	}

	return known, rest
}

// FilterArgs returns only the allowed valued flags (and their values) from args.
func FilterArgs(args []string, allowedFlags []string) []string {
	known, _ := Split(args, Known{Valued: allowedFlags})
	return known
}

// ConfigFile extracts the config file path given via -c or -config.
// If neither is present, an empty string is returned.
func ConfigFile(args []string) string {
	var config string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return config
}
