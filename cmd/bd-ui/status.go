package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steveyegge/beads-ui/internal/config"
	"github.com/steveyegge/beads-ui/internal/supervisor"
	"github.com/steveyegge/beads-ui/internal/ui"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running bd-ui server",
	Long: `Queries a running bd-ui server's /health and /api/status endpoints and
prints supervisor health, breaker state and workspace change activity.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Server address (default: configured listen address)")
}

type statusPayload struct {
	Supervisor         supervisor.Stats `json:"supervisor"`
	WorkspaceGen       uint64           `json:"workspace_generation"`
	WorkspaceChangedAt string           `json:"workspace_changed_at"`
}

type healthPayload struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Breaker string `json:"breaker"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusAddr
	if addr == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		addr = cfg.Listen
	}

	client := &http.Client{Timeout: 5 * time.Second}

	var health healthPayload
	if err := getJSON(client, "http://"+addr+"/health", &health); err != nil {
		if jsonOutput {
			return err
		}
		fmt.Printf("%s bd-ui server not reachable at %s\n", ui.RenderFail(ui.IconFail), addr)
		fmt.Println(ui.RenderMuted("   " + err.Error()))
		os.Exit(1)
	}

	var status statusPayload
	if err := getJSON(client, "http://"+addr+"/api/status", &status); err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
			"health": health,
			"status": status,
		})
	}

	// Plain output when piped.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("server: %s (%s) at %s\n", health.Status, health.Version, addr)
		fmt.Printf("breaker: %s (%d consecutive failures)\n",
			status.Supervisor.BreakerState, status.Supervisor.ConsecutiveFailures)
		fmt.Printf("exec: %d active / %d max, %d queued, %d in flight\n",
			status.Supervisor.Active, status.Supervisor.MaxConcurrent,
			status.Supervisor.Waiters, status.Supervisor.InFlight)
		if status.WorkspaceChangedAt != "" {
			fmt.Printf("workspace: generation %d, last change %s\n",
				status.WorkspaceGen, status.WorkspaceChangedAt)
		}
		return nil
	}

	fmt.Println(ui.RenderHeader("BD-UI SERVER"))
	fmt.Printf("%s %s %s\n", ui.RenderPass(ui.IconPass), health.Status,
		ui.RenderMuted(fmt.Sprintf("(%s at %s)", health.Version, addr)))

	icon := ui.RenderPass(ui.IconPass)
	if status.Supervisor.BreakerState == "open" {
		icon = ui.RenderFail(ui.IconFail)
	} else if status.Supervisor.ConsecutiveFailures > 0 {
		icon = ui.RenderWarn(ui.IconWarn)
	}
	fmt.Printf("%s breaker %s %s\n", icon, status.Supervisor.BreakerState,
		ui.RenderMuted(fmt.Sprintf("(%d consecutive failures)", status.Supervisor.ConsecutiveFailures)))
	fmt.Printf("  exec: %d active / %d max, %d queued, %d in flight\n",
		status.Supervisor.Active, status.Supervisor.MaxConcurrent,
		status.Supervisor.Waiters, status.Supervisor.InFlight)
	if status.WorkspaceChangedAt != "" {
		fmt.Printf("  workspace: generation %d, %s\n",
			status.WorkspaceGen, ui.RenderMuted("last change "+status.WorkspaceChangedAt))
	}
	return nil
}

func getJSON(client *http.Client, url string, out interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}
