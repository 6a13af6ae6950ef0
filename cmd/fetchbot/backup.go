package main

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of fetchbot data (database + config)",
		Long: `Creates a compressed .tar.gz archive containing the SQLite database
and configuration file. The backup is timestamped by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			dbPath := resolveDBPath(cfgPath)

			if outputPath == "" {
				home, _ := os.UserHomeDir()
				backupDir := filepath.Join(home, ".fetchbot", "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("fetchbot-backup-%s.tar.gz", ts))
			}

			var files []string

			// Database plus its WAL/SHM sidecars if present
			if _, err := os.Stat(dbPath); err == nil {
				files = append(files, dbPath)
				for _, suffix := range []string{"-wal", "-shm"} {
					sidecar := dbPath + suffix
					if _, err := os.Stat(sidecar); err == nil {
						files = append(files, sidecar)
					}
				}
			}

			if _, err := os.Stat(cfgPath); err == nil {
				files = append(files, cfgPath)
			}

			if len(files) == 0 {
				return fmt.Errorf("no files to backup (db: %s, config: %s)", dbPath, cfgPath)
			}

			if err := createTarGz(outputPath, files); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			fmt.Printf("Backup created: %s\n", outputPath)
			fmt.Printf("Files included: %d\n", len(files))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output archive path")
	return cmd
}

// resolveDBPath reads just the storage.dbPath value from the config file,
// falling back to the default when the config is unreadable.
func resolveDBPath(cfgPath string) string {
	fallback := filepath.Join(filepath.Dir(cfgPath), "videos.db")

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return fallback
	}
	var partial struct {
		Storage struct {
			DBPath string `json:"dbPath"`
		} `json:"storage"`
	}
	if err := json.Unmarshal(data, &partial); err != nil || partial.Storage.DBPath == "" {
		return fallback
	}

	path := partial.Storage.DBPath
	if len(path) > 1 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

func createTarGz(outputPath string, files []string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, file := range files {
		if err := addFileToTar(tw, file); err != nil {
			return fmt.Errorf("add %s: %w", file, err)
		}
	}
	return nil
}

func addFileToTar(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
