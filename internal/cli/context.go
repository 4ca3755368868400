package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/config"
	"github.com/yonasBSD/freebsd-godate/internal/fsutil"
	"github.com/yonasBSD/freebsd-godate/internal/logging"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
	"github.com/yonasBSD/freebsd-godate/internal/state"
	"github.com/yonasBSD/freebsd-godate/internal/sysinfo"
	"github.com/yonasBSD/freebsd-godate/internal/transport"
)

// runContext bundles everything a subcommand's RunE needs once the
// persistent flags are parsed and the config file is loaded: the
// resolved config, a logger, the billy.Filesystem every lower package
// takes instead of the os package directly, and the on-disk layout
// every subcommand shares under WorkDir.
type runContext struct {
	Cfg    *config.Config
	Log    *logging.Logger
	FS     billy.Filesystem
	Limits pool.Limits
	HTTP   *http.Client

	StateDir string // WorkDir/state.<base64 of BaseDir>
	FilesDir string // StateDir/files
	TmpDir   string // StateDir/tmp

	Version sysinfo.VersionReporter
	Kernel  sysinfo.KernelConfigReader

	ReleaseOverride string // --override-version, empty unless set
}

// newRunContext reads cmd's persistent flags, loads the config file
// they name, and assembles everything downstream packages need. Called
// once at the top of every subcommand's RunE.
func newRunContext(cmd *cobra.Command) (*runContext, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString(flagConfig)
	baseDirFlag, _ := flags.GetString(flagBaseDir)
	workDirFlag, _ := flags.GetString(flagWorkDir)
	verbose, _ := flags.GetBool(flagVerbose)
	releaseOverride, _ := flags.GetString(flagVersion)

	v, err := config.BindRuntimeFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("cli: binding runtime flags: %w", err)
	}
	limits := config.RuntimeLimits(v)

	fsys := osfs.New("/", osfs.WithBoundOS())

	cfg, err := config.Load(fsys, configPath, config.Overrides{
		BaseDir: baseDirFlag,
		WorkDir: workDirFlag,
	})
	if err != nil {
		return nil, err
	}

	if ok, statErr := fsutil.Exists(fsys, cfg.BaseDir, ""); statErr == nil && !ok {
		return nil, wrapPrecondition(fmt.Sprintf("base directory %s does not exist", cfg.BaseDir))
	}
	if cfg.ServerName == "" {
		return nil, wrapPrecondition("no ServerName configured")
	}

	stateDir := fsys.Join(cfg.WorkDir, state.DirName(cfg.BaseDir))
	filesDir := fsys.Join(stateDir, "files")
	tmpDir := fsys.Join(stateDir, "tmp")
	for _, d := range []string{stateDir, filesDir, tmpDir} {
		if err := fsys.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("cli: creating %s: %w", d, err)
		}
	}

	logCfg := logging.DefaultConfig()
	logCfg.LogFile = fsys.Join(stateDir, "freebsd-godate.log")
	if verbose {
		logCfg.ConsoleLevel = logging.LevelFromString("debug")
		logCfg.FileLevel = logging.LevelFromString("debug")
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("cli: building logger: %w", err)
	}

	httpClient, err := transport.NewClient(transport.DefaultClientConfig())
	if err != nil {
		return nil, fmt.Errorf("cli: building http client: %w", err)
	}

	return &runContext{
		Cfg:             cfg,
		Log:             log,
		FS:              fsys,
		Limits:          limits,
		HTTP:            httpClient,
		StateDir:        stateDir,
		FilesDir:        filesDir,
		TmpDir:          tmpDir,
		Version:         sysinfo.ShellVersionReporter{BaseDir: cfg.BaseDir},
		Kernel:          sysinfo.SysctlKernelInfo{},
		ReleaseOverride: releaseOverride,
	}, nil
}

// release resolves the (release, arch) pair a fetch/upgrade run
// authenticates and fetches against: the live system's reported version
// unless --override-version pins one, and the booted kernel's
// architecture either way.
func (rc *runContext) release(ctx context.Context) (release, arch string, err error) {
	arch, err = rc.Kernel.Arch()
	if err != nil {
		return "", "", fmt.Errorf("cli: determining architecture: %w", err)
	}
	if rc.ReleaseOverride != "" {
		rel, err := sysinfo.ParseRelease(rc.ReleaseOverride)
		if err != nil {
			return "", "", err
		}
		return rel.String(), arch, nil
	}
	ver, err := rc.Version.Get(ctx)
	if err != nil {
		return "", "", fmt.Errorf("cli: determining running release: %w", err)
	}
	return ver.Max().String(), arch, nil
}
