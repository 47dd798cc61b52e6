package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/CZERTAINLY/Opener/internal/log"
	"github.com/CZERTAINLY/Opener/internal/model"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // /default/config/path/opener on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagWait           bool   // value of open --wait flag
	flagForce          bool   // value of assoc init --force flag
	flagCount          int    // value of assoc gen -n flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "opener")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is opener.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	openCmd.Flags().BoolVar(&flagWait, "wait", false, "run the handlers in the foreground and wait for them")
	assocInitCmd.Flags().BoolVar(&flagForce, "force", false, "overwrite an existing association file")
	assocGenCmd.Flags().IntVarP(&flagCount, "count", "n", 1000, "number of random associations")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initOpener

	assocCmd.AddCommand(assocInitCmd)
	assocCmd.AddCommand(assocGenCmd)

	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(mimeCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(assocCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("opener failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "opener",
	Short:        "Tool opening files with a program associated with their mime type",
	SilenceUsage: true,
}

var openCmd = &cobra.Command{
	Use:   "open <file>...",
	Short: "detect the mime type of files and launch the associated programs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		o, err := NewOpener(ctx, config)
		if err != nil {
			return err
		}
		return o.Open(ctx, args, flagWait)
	},
}

var mimeCmd = &cobra.Command{
	Use:   "mime <file>...",
	Short: "print the mime type of files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		o, err := NewDetector(config)
		if err != nil {
			return err
		}
		return o.Mime(ctx, args, cmd.OutOrStdout())
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <mime>...",
	Short: "print the command associated with mime types",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		o, err := NewOpener(ctx, config)
		if err != nil {
			return err
		}
		return o.Lookup(args, cmd.OutOrStdout())
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]...",
	Short: "classify all files in paths and print a CycloneDX BOM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		o, err := NewOpener(ctx, config)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
			args = []string{cwd}
		}
		return o.Scan(ctx, args, cmd.OutOrStdout())
	},
}

var assocCmd = &cobra.Command{
	Use:   "assoc",
	Short: "manage association files",
}

var assocInitCmd = &cobra.Command{
	Use:   "init",
	Short: "write the default associations to the configured path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := config.AssociationsPath()
		if err != nil {
			return err
		}
		if err := AssocInit(cmdContext(cmd), path, flagForce); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

var assocGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "print a random association table, useful for benchmarks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return AssocGen(cmd.OutOrStdout(), flagCount)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of an opener",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("opener: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config: %s\n", configPath)
		}
		fmt.Printf("opener: %s\n", info.Main.Version)
		fmt.Printf("go:     %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit: %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:   %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:  %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func cmdContext(cmd *cobra.Command) context.Context {
	attrs := slog.Group("opener",
		slog.String("cmd", cmd.Name()),
		slog.Int("pid", os.Getpid()),
	)
	return log.ContextAttrs(cmd.Context(), attrs)
}

func initOpener(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if envConfig, ok := os.LookupEnv("OPENERCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "opener.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration, it is read back so OPENER_ variables apply
	if configPath == "" {
		configPath = filepath.Join(userConfigPath, "opener.yaml")
		if err := storeConfig(configPath, model.DefaultConfig(ctx)); err != nil {
			return err
		}
	}

	var err error
	config, err = loadConfig(ctx, configPath)
	if err != nil {
		return err
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Verbose = true
	}

	slog.SetDefault(log.New(os.Stderr, config.Verbose))

	slog.Debug("opener run", "configPath", configPath)
	slog.Debug("opener run", "config", config)
	return nil
}

func loadConfig(ctx context.Context, path string) (model.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Config{}, fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := model.LoadConfig(ctx, f)
	if err != nil {
		return model.Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func storeConfig(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	defer func() {
		_ = enc.Close()
	}()
	err = enc.Encode(cfg)
	if err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("can't stat config file", "path", path, "error", err)
		}
		return false
	}
	return info.Mode().IsRegular()
}
