package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/beads-ui/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and scaffold bd-ui configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(cfg)
		}
		out, err := yaml.Marshal(configFile{
			Listen:    cfg.Listen,
			Workspace: cfg.Workspace,
			BDPath:    cfg.BDPath,
			GTPath:    cfg.GTPath,
			Supervisor: supervisorFile{
				Timeout:             cfg.Supervisor.Timeout.String(),
				MaxConcurrent:       cfg.Supervisor.MaxConcurrent,
				BreakerThreshold:    cfg.Supervisor.BreakerThreshold,
				BreakerResetTimeout: cfg.Supervisor.BreakerResetTimeout.String(),
				KillGrace:           cfg.Supervisor.KillGrace.String(),
			},
		})
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config to .beads-ui/config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ".beads-ui"
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(defaultConfigYAML()), 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// configFile mirrors Config with yaml tags matching the keys viper reads.
type configFile struct {
	Listen     string         `yaml:"listen"`
	Workspace  string         `yaml:"workspace"`
	BDPath     string         `yaml:"bd-path"`
	GTPath     string         `yaml:"gt-path"`
	Supervisor supervisorFile `yaml:"supervisor"`
}

type supervisorFile struct {
	Timeout             string `yaml:"timeout"`
	MaxConcurrent       int    `yaml:"max-concurrent"`
	BreakerThreshold    int    `yaml:"breaker-threshold"`
	BreakerResetTimeout string `yaml:"breaker-reset-timeout"`
	KillGrace           string `yaml:"kill-grace"`
}

// defaultConfigYAML renders the built-in defaults as a commented YAML
// document, built with the yaml encoder so init output and file parsing
// cannot drift apart.
func defaultConfigYAML() string {
	defaults := config.Defaults()
	doc := configFile{
		Listen:    defaults.Listen,
		Workspace: defaults.Workspace,
		BDPath:    defaults.BDPath,
		GTPath:    defaults.GTPath,
		Supervisor: supervisorFile{
			Timeout:             defaults.Supervisor.Timeout.String(),
			MaxConcurrent:       defaults.Supervisor.MaxConcurrent,
			BreakerThreshold:    defaults.Supervisor.BreakerThreshold,
			BreakerResetTimeout: defaults.Supervisor.BreakerResetTimeout.String(),
			KillGrace:           defaults.Supervisor.KillGrace.String(),
		},
	}

	var node yaml.Node
	if err := node.Encode(doc); err != nil {
		// Defaults always encode; a failure here is a programming error.
		panic(err)
	}
	comments := map[string]string{
		"listen":     "HTTP listen address. Loopback only unless you front it with a proxy.",
		"workspace":  "bd project root (the directory containing .beads).",
		"bd-path":    "Paths to the external binaries; bare names resolve via PATH.",
		"supervisor": "External command execution limits.",
	}
	for i := 0; i < len(node.Content); i += 2 {
		if c, ok := comments[node.Content[i].Value]; ok {
			node.Content[i].HeadComment = c
		}
	}

	out, err := yaml.Marshal(&node)
	if err != nil {
		panic(err)
	}
	return "# bd-ui configuration. Every key can also be set via BD_UI_* env vars,\n# e.g. BD_UI_LISTEN or BD_UI_SUPERVISOR_MAX_CONCURRENT.\n\n" + string(out)
}
