package distsync

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/arthur-debert/distsync/internal/version"
	"github.com/arthur-debert/distsync/pkg/cleaner"
	"github.com/arthur-debert/distsync/pkg/config"
	"github.com/arthur-debert/distsync/pkg/distribution"
	"github.com/arthur-debert/distsync/pkg/elevation"
	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/filesystem"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/output"
	"github.com/arthur-debert/distsync/pkg/status"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	verbosity  int
	configPath string
	dryRun     bool
	format     string
	overrides  []string
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	initTemplateFormatting()

	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "distsync",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(opts.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errors.New(errors.ErrInvalidInput, "no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", MsgFlagConfig)
	rootCmd.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, MsgFlagDryRun)
	rootCmd.PersistentFlags().StringVarP(&opts.format, "format", "o", "auto", MsgFlagFormat)
	rootCmd.PersistentFlags().StringArrayVar(&opts.overrides, "set", nil, MsgFlagSet)

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "COMMANDS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})
	rootCmd.SetUsageTemplate(usageTemplate)

	rootCmd.AddCommand(newSyncCmd(opts))
	rootCmd.AddCommand(newPlanCmd(opts))
	rootCmd.AddCommand(newCleanCmd(opts))
	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newLinkHelperCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// loadConfig loads the configuration named by --config, or discovers one.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	overrides, err := config.ParseOverrides(o.overrides)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithOverrides(o.configPath, overrides)
	if err != nil {
		return nil, fmt.Errorf(MsgErrLoadConfig, err)
	}
	log.Debug().Str("config", cfg.String()).Msg("Configuration loaded")
	return cfg, nil
}

// renderer resolves --format against the command's output stream.
func (o *globalOptions) renderer(w io.Writer) (*output.Renderer, error) {
	format, err := output.ParseFormat(o.format)
	if err != nil {
		return nil, err
	}
	if f, ok := w.(*os.File); ok {
		format = format.Resolve(f)
	}
	return output.NewRenderer(w, format), nil
}

// environmentNamesCompletion completes configured environment names.
func environmentNamesCompletion(opts *globalOptions) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		used := make(map[string]bool, len(args))
		for _, a := range args {
			used[a] = true
		}
		var names []string
		for _, name := range cfg.EnvironmentNames() {
			if !used[name] {
				names = append(names, name)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

// runSync loads the configuration and synchronizes the named environments.
func runSync(cmd *cobra.Command, opts *globalOptions, names []string, dryRun, continueOnError bool, parallel int) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	r, err := opts.renderer(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	fsys := filesystem.NewOS()
	envs, err := distribution.Environments(fsys, cfg, names)
	if err != nil {
		return fmt.Errorf(MsgErrEnvironments, err)
	}
	if len(envs) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), MsgNoEnvironments)
		return nil
	}

	syncer := distribution.NewSyncer(fsys, cfg)
	syncer.DryRun = dryRun
	if continueOnError {
		syncer.ContinueOnError = true
	}
	if parallel > 0 {
		syncer.Parallelism = parallel
	}

	log.Info().
		Strs("environments", names).
		Bool("dry_run", dryRun).
		Int("parallelism", syncer.Parallelism).
		Msg("Synchronizing environments")

	results, syncErr := syncer.SyncAll(cmd.Context(), envs)
	if err := r.RenderResults(results); err != nil {
		return fmt.Errorf(MsgErrRender, err)
	}
	if dryRun && r.Format() != output.FormatJSON {
		fmt.Fprintln(cmd.OutOrStdout(), MsgDryRunNotice)
	}
	return syncErr
}

func newSyncCmd(opts *globalOptions) *cobra.Command {
	var (
		continueOnError bool
		parallel        int
	)
	cmd := &cobra.Command{
		Use:               "sync [environments...]",
		Short:             MsgSyncShort,
		Long:              MsgSyncLong,
		Example:           MsgSyncExample,
		GroupID:           "core",
		ValidArgsFunction: environmentNamesCompletion(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, args, opts.dryRun, continueOnError, parallel)
		},
	}
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, MsgFlagContinueOnError)
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, MsgFlagParallel)
	return cmd
}

func newPlanCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "plan [environments...]",
		Short:             MsgPlanShort,
		Long:              MsgPlanLong,
		GroupID:           "core",
		ValidArgsFunction: environmentNamesCompletion(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, args, true, true, 0)
		},
	}
}

func newCleanCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "clean [environments...]",
		Short:             MsgCleanShort,
		Long:              MsgCleanLong,
		GroupID:           "core",
		ValidArgsFunction: environmentNamesCompletion(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			r, err := opts.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			fsys := filesystem.NewOS()
			envs, err := distribution.Environments(fsys, cfg, args)
			if err != nil {
				return fmt.Errorf(MsgErrEnvironments, err)
			}
			syncer := distribution.NewSyncer(fsys, cfg)
			syncer.DryRun = opts.dryRun

			reports := make([]*cleaner.Report, 0, len(envs))
			for _, env := range envs {
				report, err := syncer.Clean(cmd.Context(), env)
				if err != nil {
					return errors.Wrapf(err, errors.GetErrorCode(err), "environment %q", env.Name)
				}
				reports = append(reports, report)
			}
			for i, report := range reports {
				if r.Format() != output.FormatJSON {
					fmt.Fprintf(cmd.OutOrStdout(), MsgCleanEnvFormat, envs[i].Name)
				}
				if err := r.RenderCleanup(report); err != nil {
					return fmt.Errorf(MsgErrRender, err)
				}
			}
			return nil
		},
	}
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:               "status [environments...]",
		Short:             MsgStatusShort,
		Long:              MsgStatusLong,
		GroupID:           "core",
		ValidArgsFunction: environmentNamesCompletion(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			r, err := opts.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			selected, err := cfg.Select(args)
			if err != nil {
				return fmt.Errorf(MsgErrEnvironments, err)
			}

			checker := status.NewChecker(filesystem.NewOS())
			reports := make([]*status.Report, 0, len(selected))
			var drifted []string
			for _, env := range selected {
				report, err := checker.Check(env.Name, env.Root)
				if err != nil {
					return errors.Wrapf(err, errors.GetErrorCode(err), "environment %q", env.Name)
				}
				reports = append(reports, report)
				if !report.InSync() {
					drifted = append(drifted, env.Name)
				}
			}
			if err := r.RenderStatus(reports); err != nil {
				return fmt.Errorf(MsgErrRender, err)
			}
			if check && len(drifted) > 0 {
				return errors.Newf(errors.ErrInvalidInput, "environments out of sync: %v", drifted).
					WithDetail("environments", drifted)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, MsgFlagCheck)
	return cmd
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	var defaults bool
	cmd := &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		Long:    MsgConfigLong,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if defaults {
				_, err := io.WriteString(cmd.OutOrStdout(), config.DefaultContent())
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			r, err := opts.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return r.RenderConfig(cfg)
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, MsgFlagDefaults)
	return cmd
}

func newLinkHelperCmd() *cobra.Command {
	var (
		port  int
		token string
	)
	cmd := &cobra.Command{
		Use:    elevation.HelperCommand,
		Short:  MsgLinkHelperShort,
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port <= 0 || port > 65535 || token == "" {
				return errors.New(errors.ErrInvalidInput, "link-helper needs --port and --token")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			log.Info().Int("port", port).Msg("Elevated link service starting")
			return elevation.Helper(ctx, port, token)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, MsgFlagPort)
	cmd.Flags().StringVar(&token, "token", "", MsgFlagToken)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat, version.Version, version.Commit, version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: MsgCompletionShort,
		Long: `To load completions:

Bash:
  $ source <(distsync completion bash)

Zsh:
  $ distsync completion zsh > "${fpath[1]}/_distsync"

Fish:
  $ distsync completion fish | source

PowerShell:
  PS> distsync completion powershell | Out-String | Invoke-Expression
`,
		GroupID:               "misc",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
