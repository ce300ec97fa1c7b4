package main

import (
	"fmt"
	"strings"

	"github.com/hochfrequenz/regression-orchestrator/internal/regression"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagAliases maps the short legacy spellings to the canonical flag names
var flagAliases = map[string]string{
	"atag":    "and_tag",
	"otag":    "or_tag",
	"ntag":    "not_tag",
	"lsf_cmd": "lsf_command",
	"ppp":     "plotly_py_path",
	"lpp":     "levenshtein_py_path",
}

func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

// normalizeLegacyArgs rewrites the single-dash long flags (-kind, -atag) to
// their double-dash form and expands list flags given as "-atag a b c" into
// one "--and_tag=VALUE" per value. Only flags declared on the command tree are
// touched; everything after "--" is passed through.
func normalizeLegacyArgs(root *cobra.Command, args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		flag, name, value, hasValue := lookupFlag(root, arg)
		if flag == nil {
			out = append(out, arg)
			continue
		}

		if flag.Value.Type() != "stringArray" {
			if hasValue {
				out = append(out, "--"+name+"="+value)
			} else {
				out = append(out, "--"+name)
			}
			continue
		}

		var values []string
		if hasValue {
			values = append(values, value)
		} else {
			for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				values = append(values, args[i])
			}
		}
		if len(values) == 0 {
			return nil, &regression.ExitError{Code: 2, Err: fmt.Errorf("flag needs at least one argument: %s", arg)}
		}
		for _, v := range values {
			out = append(out, "--"+name+"="+v)
		}
	}
	return out, nil
}

// lookupFlag resolves arg to a known flag when it is spelled "-name",
// "--name" or either form with "=value". Single-letter shorthands are left
// to pflag.
func lookupFlag(root *cobra.Command, arg string) (*pflag.Flag, string, string, bool) {
	if !strings.HasPrefix(arg, "-") {
		return nil, "", "", false
	}
	name := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	if name == "" {
		return nil, "", "", false
	}
	value, hasValue := "", false
	if idx := strings.Index(name, "="); idx >= 0 {
		name, value, hasValue = name[:idx], name[idx+1:], true
	}
	if !strings.HasPrefix(arg, "--") && len(name) < 2 {
		return nil, "", "", false
	}

	flag := findFlag(root, string(normalizeFlagName(nil, name)))
	if flag == nil {
		return nil, "", "", false
	}
	return flag, flag.Name, value, hasValue
}

// findFlag looks name up on cmd and then on its subcommands
func findFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	if f := cmd.PersistentFlags().Lookup(name); f != nil {
		return f
	}
	for _, sub := range cmd.Commands() {
		if f := findFlag(sub, name); f != nil {
			return f
		}
	}
	return nil
}
