package main

import (
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"fetchbot/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your fetchbot installation",
		Long: `Verifies that fetchbot's configuration, database, download directory,
and the yt-dlp binary are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("fetchbot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'fetchbot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Telegram token present
			if cfg.Telegram.Token == "" {
				printFail("Telegram token", "telegram.token is empty")
				failed++
			} else {
				printPass("Telegram token", "set")
				passed++
			}

			// 4. yt-dlp binary resolvable
			if path, err := exec.LookPath(cfg.Retrieval.YtdlpPath); err != nil {
				printFail("yt-dlp binary", fmt.Sprintf("not found: %s", cfg.Retrieval.YtdlpPath))
				failed++
			} else {
				printPass("yt-dlp binary", path)
				passed++
			}

			// 5. Download directory writable
			if err := checkWritableDir(cfg.Storage.DownloadDir); err != nil {
				printFail("Download directory", err.Error())
				failed++
			} else {
				printPass("Download directory", cfg.Storage.DownloadDir)
				passed++
			}

			// 6. Database opens and migrates
			if err := checkDatabase(cfg.Storage.DBPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.Storage.DBPath)
				passed++
			}

			fmt.Printf("\n%d passed, %d failed\n", passed, failed)
			return nil
		},
	}
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	probe := filepath.Join(dir, ".fetchbot-doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("not writable: %s", dir)
	}
	os.Remove(probe)
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()
	return db.Ping()
}

func printPass(check, detail string) {
	fmt.Printf("  ✅ %-22s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  ❌ %-22s %s\n", check, detail)
}
