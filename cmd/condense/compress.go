// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/condense/internal/artifact"
	"github.com/ManuGH/condense/internal/config"
	"github.com/ManuGH/condense/internal/encoder"
	"github.com/ManuGH/condense/internal/encoder/ffmpeg"
	"github.com/ManuGH/condense/internal/job"
	"github.com/ManuGH/condense/internal/lifecycle"
	"github.com/ManuGH/condense/internal/media"
	"github.com/ManuGH/condense/internal/settings"
)

type jobFlags struct {
	quality     string
	format      string
	preset      string
	removeAudio bool
	trimStart   float64
	trimEnd     float64
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.quality, "quality", "q", string(settings.QualityHigh), "Quality: high, medium or low")
	cmd.Flags().StringVarP(&f.format, "format", "f", string(media.FormatMP4), "Output container")
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "Publishing preset: twitter or whatsapp_status")
	cmd.Flags().BoolVar(&f.removeAudio, "remove-audio", false, "Drop the audio track")
	cmd.Flags().Float64Var(&f.trimStart, "trim-start", 0, "Trim start in seconds")
	cmd.Flags().Float64Var(&f.trimEnd, "trim-end", 0, "Trim end in seconds")
}

func (f *jobFlags) settings() (settings.Settings, error) {
	s := settings.Default()
	q, err := settings.ParseQuality(f.quality)
	if err != nil {
		return s, err
	}
	format, err := media.ParseFormat(f.format)
	if err != nil {
		return s, err
	}
	p, err := settings.ParsePreset(f.preset)
	if err != nil {
		return s, err
	}
	s.Quality, s.Format, s.RemoveAudio = q, format, f.removeAudio
	s.TrimStart, s.TrimEnd = f.trimStart, f.trimEnd
	s = s.TogglePreset(p)
	return s, settings.Validate(s)
}

func newCompressCommand(ctx *commandContext) *cobra.Command {
	var (
		flags  jobFlags
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "compress <file>",
		Short: "Convert one file and write the result next to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			s, err := flags.settings()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = filepath.Dir(args[0])
			}
			return runCompress(cmd.Context(), cfg, args[0], outDir, s, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Output directory (defaults to the input's directory)")
	return cmd
}

func runCompress(parent context.Context, cfg config.Config, path, outDir string, s settings.Settings, out io.Writer) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(path) // #nosec G304 -- user-supplied input file
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	mgr := lifecycle.New(ffmpeg.Factory(cfg.FFmpeg.KillGrace), encoder.Resources{
		Binary:   cfg.FFmpeg.Bin,
		WorkRoot: cfg.WorkDir(),
	})
	defer func() { _ = mgr.Terminate(context.Background()) }()
	store := artifact.NewStore()
	ctrl := job.New(mgr, store, job.Options{})
	defer ctrl.Close()

	if err := ctrl.Load(ctx); err != nil {
		return err
	}

	sub := ctrl.Subscribe(16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		printProgress(out, sub)
	}()

	a, err := ctrl.Run(ctx, job.Input{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Body:        f,
	}, s)
	sub.Close()
	<-done
	if err != nil {
		return err
	}

	dst, err := store.Export(ctx, a.ID, outDir)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "wrote %s (%d bytes)\n", dst, a.Size)
	return err
}

func printProgress(out io.Writer, sub *job.Subscription) {
	for ev := range sub.Events() {
		switch ev.Type {
		case job.EventProgress:
			_, _ = fmt.Fprintf(out, "\rprogress: %3d%%", ev.Progress)
		case job.EventCompleted:
			_, _ = fmt.Fprintln(out, "\rprogress: 100%")
		case job.EventFailed:
			_, _ = fmt.Fprintln(out)
		}
	}
}
