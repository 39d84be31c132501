package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"intellirefactor/candidate"
	"intellirefactor/codeaction"
	"intellirefactor/commands"
	"intellirefactor/logger"
	"intellirefactor/picker"
	"intellirefactor/syntax"
	"intellirefactor/types"
)

func newRootCmd() *cobra.Command {
	var daemon bool
	root := &cobra.Command{
		Use:           "intellirefactor",
		Short:         "Syntax-aware refactoring commands for Neovim",
		Long:          "Without a subcommand the binary relays Neovim's RPC channel to the shared daemon, starting it when needed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := defaultPaths()
			if daemon {
				return runDaemon(paths)
			}
			return runClient(paths)
		},
	}
	root.Flags().BoolVar(&daemon, "daemon", false, "Run the shared daemon")

	root.AddCommand(
		newCommandsCmd(),
		newCandidatesCmd(),
	)
	return root
}

func newCommandsCmd() *cobra.Command {
	var keymap, mac bool
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the refactoring commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if keymap {
				lua, err := commands.KeymapLua(userCommand, mac)
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, lua)
				return err
			}
			for _, d := range commands.All() {
				binding := d.Key
				if mac && d.Mac != "" {
					binding = d.Mac
				}
				kind := string(d.Kind)
				if kind == "" {
					kind = "*"
				}
				fmt.Fprintf(out, "%-24s %-10s %-28s %s\n", d.ID, d.Family, kind, binding)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keymap, "keymap", false, "Print the Neovim keymap setup instead")
	cmd.Flags().BoolVar(&mac, "mac", false, "Prefer macOS bindings")
	return cmd
}

func newCandidatesCmd() *cobra.Command {
	var (
		id       string
		cfgFile  string
		root     string
		pick     bool
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "candidates FILE LINE:COL[-LINE:COL]",
		Short: "Resolve refactoring candidates in a Go file with a language server",
		Long: "Resolves the candidates a command would offer at a caret or selection. " +
			"Lines and columns are 1-based; columns count bytes.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadFileConfig(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				config.LogLevel = logLevel
			}
			logger.Install(logger.NewStderr(logger.ParseLogLevel(config.LogLevel)))

			desc, ok := commands.Lookup(id)
			if !ok {
				return fmt.Errorf("unknown command %q", id)
			}
			rng, err := parseRangeArg(args[1])
			if err != nil {
				return err
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tree, err := syntax.Parse(args[0], src)
			if err != nil {
				return err
			}
			if tree.ParseErr != nil {
				logger.Warn("%v", tree.ParseErr)
			}

			if root == "" {
				root = filepath.Dir(args[0])
			}
			server, err := codeaction.StartProcess(config.processConfig(root))
			if err != nil {
				return err
			}
			defer server.Close()

			ctx, cancel := withOptionalTimeout(cmd.Context(), config.resolveTimeout())
			defer cancel()

			docURI, err := server.Open(ctx, tree)
			if err != nil {
				return err
			}

			r := newCLIResolver(tree, docURI, server, desc, config)
			cands, err := resolveCandidates(ctx, r, tree, desc, rng)
			if err != nil {
				return err
			}
			if len(cands) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no candidates")
				return nil
			}

			items := candidateItems(cands)
			if !pick {
				for _, it := range items {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", it.Selection, it.Detail, it.Label)
				}
				return nil
			}

			session, err := picker.NewSession(desc.Placeholder(), items, rng, nil)
			if err != nil {
				return err
			}
			item, ok, err := picker.Run(session, cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", item.Selection, item.Label)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "command", "refactor", "Command id (see the commands subcommand)")
	cmd.Flags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&root, "root", "", "Workspace root for the language server (default: the file's directory)")
	cmd.Flags().BoolVar(&pick, "pick", false, "Choose among several candidates interactively")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level written to stderr")
	return cmd
}

// newCLIResolver builds the resolver for the candidates command. There is
// no editor whose selection could be forced, so compatibility mode is off
// and every candidate is queried with its own range.
func newCLIResolver(tree *syntax.Tree, docURI protocol.DocumentURI, fetcher candidate.Fetcher, desc commands.Descriptor, config Config) *candidate.Resolver {
	if config.UseCompatSelection {
		logger.Warn("use_compat_selection needs an editor; ignored")
	}
	return candidate.NewResolver(tree, docURI, fetcher, desc.Filter(false), nil)
}

func resolveCandidates(ctx context.Context, r *candidate.Resolver, tree *syntax.Tree, desc commands.Descriptor, rng types.Range) ([]*candidate.Candidate, error) {
	var c *candidate.Candidate
	var err error
	switch {
	case !rng.IsEmpty():
		c, err = r.OnSelection(ctx, rng)
	case desc.Family == commands.FamilyNearest:
		c, err = r.Nearest(ctx, syntax.ResolveChain(tree, rng))
	default:
		return r.Expressions(ctx, syntax.ResolveChain(tree, rng), desc.TypeExpression)
	}
	if err != nil || c == nil {
		return nil, err
	}
	return []*candidate.Candidate{c}, nil
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func candidateItems(cands []*candidate.Candidate) []picker.Item {
	items := make([]picker.Item, len(cands))
	for i, c := range cands {
		items[i] = picker.Item{Label: c.Label(), Detail: c.Detail(), Selection: c.Selection}
	}
	return items
}

// parseRangeArg reads "LINE:COL" as a caret or "LINE:COL-LINE:COL" as a
// selection. Both are 1-based.
func parseRangeArg(s string) (types.Range, error) {
	startText, endText, isRange := strings.Cut(s, "-")
	start, err := parsePositionArg(startText)
	if err != nil {
		return types.Range{}, err
	}
	if !isRange {
		return types.Caret(start), nil
	}
	end, err := parsePositionArg(endText)
	if err != nil {
		return types.Range{}, err
	}
	return types.NewRange(start, end), nil
}

func parsePositionArg(s string) (types.Position, error) {
	lineText, colText, ok := strings.Cut(s, ":")
	if !ok {
		return types.Position{}, fmt.Errorf("position %q: want LINE:COL", s)
	}
	line, err := strconv.Atoi(lineText)
	if err != nil || line < 1 {
		return types.Position{}, fmt.Errorf("position %q: bad line", s)
	}
	col, err := strconv.Atoi(colText)
	if err != nil || col < 1 {
		return types.Position{}, fmt.Errorf("position %q: bad column", s)
	}
	return types.Position{Line: line - 1, Column: col - 1}, nil
}
