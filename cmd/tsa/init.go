package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tsa/internal/config"
	"tsa/internal/paths"
	"tsa/internal/project"
	"tsa/internal/storage"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a tsa workspace",
	Long: `Creates a .tsa/ directory in the current directory with default
configuration, an empty project database, and an example STACKUP.toml to
start from. An existing STACKUP.toml is never touched.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false,
		"Force reinitialization (removes the existing .tsa directory)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	dataDir := paths.GetDataDir(root)
	if _, statErr := os.Stat(dataDir); statErr == nil {
		if !initForce {
			// Idempotent behavior: already initialized is success
			fmt.Println("tsa workspace already initialized.")
			fmt.Printf("Configuration at: %s\n", paths.GetConfigPath(root))
			fmt.Println("\nRun 'tsa init --force' to reinitialize.")
			return nil
		}
		if removeErr := os.RemoveAll(dataDir); removeErr != nil {
			return fmt.Errorf("failed to remove existing %s directory: %w", paths.DataDirName, removeErr)
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(root); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger, closer := newWorkspaceLogger(root, cfg)
	db, err := storage.Open(root, logger)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer func() {
		_ = db.Close()
		if closer != nil {
			_ = closer.Close()
		}
	}()

	stackupPath := paths.GetStackupFilePath(root)
	wroteExample := false
	if _, statErr := os.Stat(stackupPath); os.IsNotExist(statErr) {
		if err := project.CreateExampleStackupFile(stackupPath); err != nil {
			return fmt.Errorf("failed to write example stackup file: %w", err)
		}
		wroteExample = true
	}

	logger.Info("workspace initialized", "root", root)

	fmt.Println("tsa workspace initialized!")
	fmt.Printf("Configuration written to: %s\n", paths.GetConfigPath(root))
	fmt.Printf("Database created at: %s\n", paths.GetDBPath(root))
	if wroteExample {
		fmt.Printf("Example stackup written to: %s\n", stackupPath)
	}
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to describe your components and analyses\n", paths.StackupFileName)
	fmt.Println("  2. Run 'tsa sync' to load it into the workspace")
	fmt.Println("  3. Run 'tsa run <analysis>' to compute the stackup")

	return nil
}
