package cli

import (
	"context"
	"log/slog"

	"github.com/kilnhq/kilnd/internal/generate"
)

// Represents the 'kilnd generate' command.
type GenerateCmd struct {
	Root      string `arg:"" optional:"" help:"Project root to inspect." default:"."`
	Output    string `short:"o" help:"Recipe path. Defaults to kiln.yaml in the project root." placeholder:"PATH"`
	BaseImage string `help:"Base image for the generated recipe."`
	Port      int    `help:"Server port for the generated recipe."`
	Force     bool   `short:"f" help:"Overwrite an existing recipe."`
}

// Executes the generate command.
func (c *GenerateCmd) Run(ctx context.Context) error {
	path, err := generate.Run(generate.Options{
		Root:      c.Root,
		Output:    c.Output,
		BaseImage: c.BaseImage,
		Port:      c.Port,
		Force:     c.Force,
	})
	if err != nil {
		return err
	}

	slog.Info("recipe written", "path", path)
	return nil
}
