package distsync

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Keep runtime environments in step with built artifacts"
	MsgSyncShort       = "Synchronize environments"
	MsgPlanShort       = "Show what a synchronization would change"
	MsgCleanShort      = "Remove files the last synchronization did not produce"
	MsgStatusShort     = "Compare environments with their last synchronization"
	MsgConfigShort     = "Show the effective configuration"
	MsgLinkHelperShort = "Run the elevated link service"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	// Status messages
	MsgDryRunNotice   = "\nDRY RUN MODE - No changes were made"
	MsgVersionFormat  = "distsync version %s\n  commit: %s\n  built:  %s\n"
	MsgCleanEnvFormat = "%s:\n"
	MsgNoEnvironments = "No environments configured."

	// Error messages
	MsgErrLoadConfig   = "failed to load configuration: %w"
	MsgErrEnvironments = "failed to prepare environments: %w"
	MsgErrRender       = "failed to render output: %w"

	// Flag descriptions
	MsgFlagVerbose         = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagDryRun          = "Preview changes without executing them"
	MsgFlagConfig          = "Configuration file (default: $DISTSYNC_CONFIG, ./distsync.toml, then the user config dir)"
	MsgFlagFormat          = "Output format: auto, term, text or json"
	MsgFlagContinueOnError = "Keep synchronizing other environments after one fails"
	MsgFlagParallel        = "Number of environments synchronized at once (0 uses sync.parallelism)"
	MsgFlagSet             = "Override a configuration key, e.g. --set sync::parallelism=2 (repeatable)"
	MsgFlagCheck           = "Exit with an error when any environment is out of sync"
	MsgFlagDefaults        = "Print the built-in default configuration"
	MsgFlagPort            = "Loopback port to listen on"
	MsgFlagToken           = "Session token clients must present"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/sync-long.txt
	msgSyncLongRaw string
	MsgSyncLong    = strings.TrimSpace(msgSyncLongRaw)

	//go:embed msgs/sync-example.txt
	msgSyncExampleRaw string
	MsgSyncExample    = strings.TrimRight(msgSyncExampleRaw, "\n")

	//go:embed msgs/plan-long.txt
	msgPlanLongRaw string
	MsgPlanLong    = strings.TrimSpace(msgPlanLongRaw)

	//go:embed msgs/clean-long.txt
	msgCleanLongRaw string
	MsgCleanLong    = strings.TrimSpace(msgCleanLongRaw)

	//go:embed msgs/status-long.txt
	msgStatusLongRaw string
	MsgStatusLong    = strings.TrimSpace(msgStatusLongRaw)

	//go:embed msgs/config-long.txt
	msgConfigLongRaw string
	MsgConfigLong    = strings.TrimSpace(msgConfigLongRaw)
)
