package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"molock/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Creates a configuration file with one example endpoint, so
"molockd serve" has something to mock immediately.

Writes to the path given by --config (or its default), refusing to
overwrite an existing file unless --force is set.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile

	if initForce {
		if err := removeIfExists(path); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}

	if err := config.ScaffoldDefault(path); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	fmt.Printf("Wrote configuration to %s\n", path)
	fmt.Println("Start the server with:")
	fmt.Printf("  molockd serve --config %s\n", path)
	return nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
