package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Builder compiles a guest package into a WASI reactor module.
type Builder struct {
	// Package is the import path or directory of the guest's main package.
	Package string
	// Output is the module path. Defaults to {package name}.wasm.
	Output string
	// Dir is the directory go runs in.
	Dir string
	// Go is the go command. Defaults to "go".
	Go string

	Stdout, Stderr io.Writer
}

func (b *Builder) output() string {
	if b.Output != "" {
		return b.Output
	}
	name := filepath.Base(strings.TrimRight(b.Package, "/"))
	if name == "." || name == "/" || name == "" {
		name = "script"
	}
	return name + ".wasm"
}

// command returns the go build invocation. Reactor modules run package
// initializers from _initialize and never call main.
func (b *Builder) command(ctx context.Context) (*exec.Cmd, error) {
	output, err := filepath.Abs(b.output())
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path of output file %s: %w", b.Output, err)
	}
	goCmd := b.Go
	if goCmd == "" {
		goCmd = "go"
	}

	cmd := exec.CommandContext(ctx, goCmd, "build", "-buildmode=c-shared", "-o", output, b.Package)
	cmd.Dir = b.Dir
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm")
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr
	return cmd, nil
}

// Build runs go build.
func (b *Builder) Build(ctx context.Context) error {
	cmd, err := b.command(ctx)
	if err != nil {
		return err
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to build package %s: %w", b.Package, err)
	}
	return nil
}

func newBuildCommand() *cobra.Command {
	b := &Builder{}
	cmd := &cobra.Command{
		Use:   "build [flags] package",
		Short: "Compile a guest package into a script module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b.Package = args[0]
			b.Stdout, b.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			if err := b.Build(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("built %s\n", b.output())
			return nil
		},
	}
	cmd.Flags().StringVarP(&b.Output, "output", "o", "", "output file (default: {package}.wasm)")
	cmd.Flags().StringVar(&b.Dir, "workdir", "", "directory to run go in")
	return cmd
}
