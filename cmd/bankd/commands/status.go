package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/marmos91/bankd/internal/cli/health"
	"github.com/marmos91/bankd/internal/cli/output"
	"github.com/marmos91/bankd/internal/cli/timeutil"
	"github.com/spf13/cobra"
)

var (
	statusOutput  string
	statusPidFile string
	statusAPIPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the bankd server.

The PID file tells whether the process is alive; the readiness endpoint of the
admin API reports how many of the session slots are taken.

Examples:
  # Check status (uses default settings)
  bankd status

  # Check status with custom API port
  bankd status --api-port 9081

  # Output as JSON
  bankd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/bankd/bankd.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 8081, "Admin API port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Running         bool   `json:"running" yaml:"running"`
	PID             int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Healthy         bool   `json:"healthy" yaml:"healthy"`
	Message         string `json:"message" yaml:"message"`
	Sessions        int    `json:"sessions" yaml:"sessions"`
	SessionCapacity int    `json:"session_capacity" yaml:"session_capacity"`
	DataDir         string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	StartedAt       string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime          string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{Message: "Server is not running"}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if pid, running := isProcessRunning(pidPath); running {
		status.Running = true
		status.PID = pid
	}

	client := &http.Client{Timeout: 2 * time.Second}
	base := fmt.Sprintf("http://localhost:%d", statusAPIPort)

	var ready health.ReadyResponse
	if err := getJSON(client, base+"/health/ready", &ready); err == nil {
		status.Running = true
		status.Healthy = ready.Accepting()
		status.Sessions = ready.Data.Sessions
		status.SessionCapacity = ready.Data.SessionCapacity
		status.DataDir = ready.Data.DataDir
		switch {
		case status.Healthy:
			status.Message = "Server is running and accepting logins"
		case ready.Full():
			status.Message = "Server is running but every session slot is taken"
		default:
			status.Message = fmt.Sprintf("Server is running but unhealthy: %s", ready.Error)
		}

		var live health.Response
		if err := getJSON(client, base+"/health", &live); err == nil {
			status.StartedAt = live.Data.StartedAt
			status.Uptime = live.Data.Uptime
		}
	} else if errors.Is(err, errInvalidHealth) {
		status.Running = true
		status.Message = "Server is running but health response invalid"
	} else if status.Running {
		status.Message = "Server process exists but health check failed"
	}

	if format != output.FormatTable {
		return output.Print(os.Stdout, format, status)
	}
	printStatusTable(status)
	return nil
}

var errInvalidHealth = errors.New("invalid health response")

// getJSON decodes the body of url into v whatever the status code, since
// the health endpoints answer 503 with a JSON body.
func getJSON(client *http.Client, url string, v interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidHealth, err)
	}
	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("bankd Server Status")
	fmt.Println("===================")
	fmt.Println()

	if status.Running {
		if status.Healthy {
			fmt.Printf("  Status:     \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:     \033[33m● Running (degraded)\033[0m\n")
		}
		if status.PID > 0 {
			fmt.Printf("  PID:        %d\n", status.PID)
		}
		if status.SessionCapacity > 0 {
			fmt.Printf("  Sessions:   %d/%d\n", status.Sessions, status.SessionCapacity)
		}
		if status.DataDir != "" {
			fmt.Printf("  Data dir:   %s\n", status.DataDir)
		}
		if status.StartedAt != "" {
			fmt.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
		}
		if status.Uptime != "" {
			fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
		}
	} else {
		fmt.Printf("  Status:     \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
