// ABOUTME: Minimal argument splitting for subcommands
// ABOUTME: Separates --flag value pairs from positional arguments

package main

import (
	"fmt"
	"strconv"
	"strings"
)

// cmdArgs is a parsed subcommand argument list.
type cmdArgs struct {
	flags      map[string]string
	positional []string
}

// parseArgs splits args into --name value pairs and positional arguments.
// Both "--name value" and "--name=value" are accepted.
func parseArgs(args []string) cmdArgs {
	parsed := cmdArgs{flags: make(map[string]string)}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			parsed.positional = append(parsed.positional, arg)
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(name, "="); ok {
			parsed.flags[k] = v
			continue
		}
		if i+1 < len(args) {
			parsed.flags[name] = args[i+1]
			i++
		} else {
			parsed.flags[name] = ""
		}
	}
	return parsed
}

func (a cmdArgs) flag(name string) string {
	return a.flags[name]
}

func (a cmdArgs) intFlag(name string) (int, error) {
	v, ok := a.flags[name]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("--%s must be a number, got %q", name, v)
	}
	return n, nil
}

func (a cmdArgs) arg(i int) string {
	if i < len(a.positional) {
		return a.positional[i]
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
