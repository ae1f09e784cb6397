package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/core"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
	"gopkg.in/yaml.v3"
)

var (
	initRemote  string
	initBackend string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a .boardconfig for a new board",
	Long: `Write a .boardconfig with default settings to path (default: the current
directory). kb looks for this file in the current directory and its parents.

An existing .boardconfig is left untouched unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		cfg := core.DefaultConfig()
		cfg.Remote.BaseURL = initRemote
		if initBackend != "" {
			cfg.Persistence.Backend = initBackend
		}
		if cfg.Persistence.Backend == models.BackendRedis && cfg.Persistence.RedisURL == "" {
			cfg.Persistence.RedisURL = "redis://localhost:6379/0"
		}
		if err := core.NewConfigurationManager(absDir).ValidateConfig(cfg); err != nil {
			return err
		}

		path, err := writeBoardConfig(absDir, cfg, initForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		if cfg.Remote.BaseURL == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No remote configured: the board is kept locally only.")
		}
		return nil
	},
}

// writeBoardConfig marshals cfg into dir/.boardconfig. It refuses to
// overwrite an existing file unless force is set.
func writeBoardConfig(dir string, cfg *models.BoardConfig, force bool) (string, error) {
	path := filepath.Join(dir, core.ConfigFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func init() {
	initCmd.Flags().StringVar(&initRemote, "remote", "", "Remote board API base URL, e.g. http://localhost:3001/api")
	initCmd.Flags().StringVar(&initBackend, "backend", "", "Persistence backend: file, redis or sqlite")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .boardconfig")
	rootCmd.AddCommand(initCmd)
}
