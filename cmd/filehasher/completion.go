package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// completionCommands lists each command with the words completed after it.
var completionCommands = []struct {
	name  string
	desc  string
	words []string
}{
	{"hash", "Compute digests", []string{"--algorithms", "--text", "--json", "--lines", "--tui", "--sidecar", "--no-record", "--quiet", "--recursive", "--ext", "--hidden", "--changed-only", "--manifest"}},
	{"verify", "Verify digests", []string{"--expected", "--algorithm", "--checksum-file", "--sidecar", "--manifest", "--all"}},
	{"history", "List recorded digests", []string{"--match", "--algorithm", "--hex", "--only-errors", "--json", "--full"}},
	{"algorithms", "List algorithms", []string{"--json"}},
	{"config", "Validate or print config", []string{"validate", "print", "--format"}},
	{"doctor", "Diagnose and maintain", []string{"--verbose", "--prune", "--vacuum", "--backup"}},
	{"completion", "Shell completion", []string{"bash", "zsh", "fish"}},
	{"version", "Print version", nil},
	{"help", "Show help", nil},
}

var completionGlobals = []string{"--config", "--log-level", "--json-logs"}

func handleCompletion(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: filehasher completion [bash|zsh|fish]")
	}
	switch args[0] {
	case "bash":
		writeBashCompletion(stdout)
	case "zsh":
		writeZshCompletion(stdout)
	case "fish":
		writeFishCompletion(stdout)
	default:
		return fmt.Errorf("unknown shell: %s", args[0])
	}
	return nil
}

func commandNames() string {
	names := make([]string, len(completionCommands))
	for i, c := range completionCommands {
		names[i] = c.name
	}
	return strings.Join(names, " ")
}

func wordsFor(words []string) string {
	return strings.Join(append(append([]string{}, words...), completionGlobals...), " ")
}

func writeBashCompletion(w io.Writer) {
	fmt.Fprintln(w, "# bash completion for filehasher")
	fmt.Fprintln(w, "_filehasher_completions()\n{")
	fmt.Fprintln(w, "    local cur prev words cword\n    _init_completion || return")
	fmt.Fprintf(w, "    local cmds=%q\n", commandNames())
	fmt.Fprintln(w, "    if [[ ${cword} -eq 1 ]]; then\n        COMPREPLY=( $(compgen -W \"${cmds}\" -- \"$cur\") )\n        return\n    fi")
	fmt.Fprintln(w, "    case ${words[1]} in")
	for _, c := range completionCommands {
		fmt.Fprintf(w, "        %s)\n            COMPREPLY=( $(compgen -W %q -- \"$cur\") ) ;;\n", c.name, wordsFor(c.words))
	}
	fmt.Fprintln(w, "        *) ;;\n    esac\n}")
	fmt.Fprintln(w, "complete -o default -F _filehasher_completions filehasher")
}

func writeZshCompletion(w io.Writer) {
	fmt.Fprintln(w, "#compdef filehasher")
	fmt.Fprintln(w, "_filehasher() {\n  local -a cmds")
	fmt.Fprintln(w, "  cmds=(")
	for _, c := range completionCommands {
		fmt.Fprintf(w, "    '%s:%s'\n", c.name, c.desc)
	}
	fmt.Fprintln(w, "  )\n  if (( CURRENT == 2 )); then\n    _describe 'command' cmds\n    return\n  fi")
	fmt.Fprintln(w, "  case $words[2] in")
	for _, c := range completionCommands {
		fmt.Fprintf(w, "    %s)\n      _arguments '*:options:(%s)' '*:file:_files'\n      ;;\n", c.name, wordsFor(c.words))
	}
	fmt.Fprintln(w, "  esac\n}\ncompdef _filehasher filehasher")
}

func writeFishCompletion(w io.Writer) {
	fmt.Fprintln(w, "# fish completion for filehasher")
	for _, c := range completionCommands {
		fmt.Fprintf(w, "complete -c filehasher -n \"__fish_use_subcommand\" -a %s -d %q\n", c.name, c.desc)
	}
	for _, c := range completionCommands {
		for _, word := range append(append([]string{}, c.words...), completionGlobals...) {
			if strings.HasPrefix(word, "--") {
				fmt.Fprintf(w, "complete -c filehasher -n \"__fish_seen_subcommand_from %s\" -l %s\n", c.name, strings.TrimPrefix(word, "--"))
			} else {
				fmt.Fprintf(w, "complete -c filehasher -n \"__fish_seen_subcommand_from %s\" -a %s\n", c.name, word)
			}
		}
	}
}
