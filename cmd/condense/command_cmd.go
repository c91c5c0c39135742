// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/condense/internal/command"
	"github.com/ManuGH/condense/internal/media"
)

// newCommandCommand prints the ffmpeg invocation a job would run.
func newCommandCommand() *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "command <file>",
		Short: "Print the ffmpeg arguments for a conversion without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.settings()
			if err != nil {
				return err
			}
			in := media.SanitizeName(args[0])
			outName := command.OutputName(in, s)
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "# recipe: %s\n", command.RecipeFor(in, s))
			_, err = fmt.Fprintf(w, "ffmpeg %s\n", strings.Join(command.Build(in, outName, s), " "))
			return err
		},
	}
	flags.register(cmd)
	return cmd
}
