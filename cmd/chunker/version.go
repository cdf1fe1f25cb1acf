package main

import (
	"fmt"
	"os"
	"path/filepath"

	// Packages
	version "github.com/mutablelogic/go-chunker/pkg/version"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type VersionCommands struct {
	Version VersionCommand `cmd:"" group:"MISC" help:"Print version information"`
}

type VersionCommand struct{}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *VersionCommand) Run() error {
	name, err := os.Executable()
	if err != nil {
		return err
	}
	fmt.Println(string(version.JSON(filepath.Base(name))))
	return nil
}
