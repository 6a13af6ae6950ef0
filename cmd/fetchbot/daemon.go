package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
)

const launchdLabel = "com.fetchbot.run"

// daemonSpec is the data rendered into a service unit. SearchPath matters:
// daemons start with a minimal environment, and the bot shells out to yt-dlp
// and ffmpeg at runtime.
type daemonSpec struct {
	Label      string
	Exec       string
	Config     string
	LogFile    string
	ErrLogFile string
	SearchPath string
}

func newDaemonSpec(execPath, cfgPath string) daemonSpec {
	home, _ := os.UserHomeDir()
	logDir := filepath.Join(home, ".fetchbot", "logs")
	return daemonSpec{
		Label:      launchdLabel,
		Exec:       execPath,
		Config:     cfgPath,
		LogFile:    filepath.Join(logDir, "fetchbot.log"),
		ErrLogFile: filepath.Join(logDir, "fetchbot-error.log"),
		SearchPath: strings.Join([]string{
			"/usr/local/bin",
			"/opt/homebrew/bin",
			"/usr/bin",
			"/bin",
		}, ":"),
	}
}

func installDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install fetchbot as a system daemon (launchd/systemd)",
		Long:  "Generates and installs a service file so the bot runs in the background and restarts on failure.",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			spec := newDaemonSpec(execPath, resolveConfigPath())

			switch runtime.GOOS {
			case "darwin":
				return installLaunchd(spec)
			case "linux":
				return installSystemd(spec)
			default:
				return fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
			}
		},
	}
}

func uninstallDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the fetchbot system daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch runtime.GOOS {
			case "darwin":
				return removeUnit(launchdPlistPath(), "launchctl unload was not run; the agent may still be loaded")
			case "linux":
				return removeUnit(systemdUnitPath(), "run 'systemctl --user disable fetchbot' to drop the enablement")
			default:
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}
		},
	}
}

func launchdPlistPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
}

func systemdUnitPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "systemd", "user", "fetchbot.service")
}

func installLaunchd(spec daemonSpec) error {
	plist, err := renderUnit(launchdTemplate, spec)
	if err != nil {
		return err
	}
	path := launchdPlistPath()
	if err := writeUnit(path, plist, filepath.Dir(spec.LogFile)); err != nil {
		return err
	}

	fmt.Printf("Daemon installed: %s\n", path)
	fmt.Printf("To start: launchctl load %s\n", path)
	fmt.Printf("To stop:  launchctl unload %s\n", path)
	return nil
}

func installSystemd(spec daemonSpec) error {
	unit, err := renderUnit(systemdTemplate, spec)
	if err != nil {
		return err
	}
	path := systemdUnitPath()
	if err := writeUnit(path, unit, ""); err != nil {
		return err
	}

	fmt.Printf("Daemon installed: %s\n", path)
	fmt.Printf("To start:  systemctl --user start fetchbot\n")
	fmt.Printf("To enable: systemctl --user enable fetchbot\n")
	fmt.Printf("To stop:   systemctl --user stop fetchbot\n")
	return nil
}

func renderUnit(tmpl string, spec daemonSpec) (string, error) {
	t, err := template.New("unit").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("unit template: %w", err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, spec); err != nil {
		return "", fmt.Errorf("render unit: %w", err)
	}
	return sb.String(), nil
}

func writeUnit(path, content, logDir string) error {
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func removeUnit(path, note string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	fmt.Printf("Daemon uninstalled: %s\n", path)
	if note != "" {
		fmt.Printf("Note: %s\n", note)
	}
	return nil
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Exec}}</string>
        <string>run</string>
        <string>--config</string>
        <string>{{.Config}}</string>
    </array>
    <key>EnvironmentVariables</key>
    <dict>
        <key>PATH</key>
        <string>{{.SearchPath}}</string>
    </dict>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <dict>
        <key>NetworkState</key>
        <true/>
    </dict>
    <key>StandardOutPath</key>
    <string>{{.LogFile}}</string>
    <key>StandardErrorPath</key>
    <string>{{.ErrLogFile}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=fetchbot Telegram media-retrieval bot
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.Exec}} run --config {{.Config}}
Environment=PATH={{.SearchPath}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
