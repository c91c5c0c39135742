// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package command translates compression settings into ffmpeg argument lists.
//
// Build is pure: it never consults the filesystem or the encoder and returns a
// fresh slice on every call. The argument order is part of the contract.
package command

import (
	"fmt"
	"math"

	"github.com/ManuGH/condense/internal/media"
	"github.com/ManuGH/condense/internal/settings"
)

// Recipe names the branch Build takes for a given input and settings.
type Recipe string

const (
	RecipeTwitter        Recipe = "twitter"
	RecipeWhatsAppStatus Recipe = "whatsapp_status"
	RecipeStreamCopy     Recipe = "stream_copy"
	RecipeCustom         Recipe = "custom"
)

// WhatsAppStatusMaxSeconds is the longest clip a WhatsApp status accepts.
// It caps the trimmed window only; untrimmed input is not cut. Earlier recipe
// revisions disagreed on this and on when trim flags appear.
const WhatsAppStatusMaxSeconds = 30.0

const scaleFilter = "scale='min(%d,iw)':'-2':flags=fast_bilinear"

// RecipeFor reports which branch Build takes. Exactly one recipe applies to every input.
func RecipeFor(inputName string, s settings.Settings) Recipe {
	switch s.ActivePreset() {
	case settings.PresetTwitter:
		return RecipeTwitter
	case settings.PresetWhatsAppStatus:
		return RecipeWhatsAppStatus
	}
	if media.FileExtension(inputName) == string(media.FormatMP4) && s.EffectiveFormat() == media.FormatMP4 {
		return RecipeStreamCopy
	}
	return RecipeCustom
}

// OutputName derives the artifact name: "<basename>_converted.<format>".
func OutputName(inputName string, s settings.Settings) string {
	base := media.StripExtension(media.SanitizeName(inputName))
	return fmt.Sprintf("%s_converted.%s", base, s.EffectiveFormat())
}

// Build returns the ffmpeg arguments for converting inputName to outputName.
func Build(inputName, outputName string, s settings.Settings) []string {
	switch RecipeFor(inputName, s) {
	case RecipeTwitter:
		return twitterArgs(inputName, outputName, s)
	case RecipeWhatsAppStatus:
		return whatsAppStatusArgs(inputName, outputName, s)
	case RecipeStreamCopy:
		return streamCopyArgs(inputName, outputName, s)
	default:
		return customArgs(inputName, outputName, s)
	}
}

func twitterArgs(in, out string, s settings.Settings) []string {
	args := []string{"-i", in}
	args = append(args, trimArgs(s.TrimStart, s.TrimDuration(), s.HasTrim())...)
	args = append(args,
		"-c:v", "libx264",
		"-profile:v", "high",
		"-preset", "veryfast",
		"-tune", "fastdecode",
		"-pix_fmt", "yuv420p",
		"-r", "30",
	)
	args = append(args, audioArgs(s.RemoveAudio, "aac", "128k")...)
	args = append(args,
		"-movflags", "+faststart",
		"-maxrate", "5000k",
		"-bufsize", "5000k",
		"-threads", "0",
		"-vf", fmt.Sprintf(scaleFilter, 1920),
		out,
	)
	return args
}

// whatsAppStatusArgs seeks before -i so the cut is fast on long inputs.
func whatsAppStatusArgs(in, out string, s settings.Settings) []string {
	duration := math.Min(s.TrimDuration(), WhatsAppStatusMaxSeconds)
	args := trimArgs(s.TrimStart, duration, s.HasTrim())
	args = append(args,
		"-i", in,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "28",
		"-tune", "fastdecode",
	)
	args = append(args, audioArgs(s.RemoveAudio, "aac", "64k")...)
	args = append(args,
		"-movflags", "+faststart",
		"-maxrate", "1500k",
		"-bufsize", "2000k",
		"-fs", "16M",
		"-vf", fmt.Sprintf(scaleFilter, 1280),
		"-threads", "0",
		out,
	)
	return args
}

func streamCopyArgs(in, out string, s settings.Settings) []string {
	args := []string{"-i", in}
	args = append(args, trimArgs(s.TrimStart, s.TrimDuration(), s.HasTrim())...)
	args = append(args, "-c:v", "copy")
	if s.RemoveAudio {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", "copy")
	}
	return append(args, "-movflags", "+faststart", "-y", out)
}

func customArgs(in, out string, s settings.Settings) []string {
	rec := recipeForFormat(s.EffectiveFormat())

	args := []string{"-i", in}
	args = append(args, trimArgs(s.TrimStart, s.TrimDuration(), s.HasTrim())...)
	args = append(args, "-c:v", rec.videoCodec)
	args = append(args, rec.qualityArgs(s.Quality)...)
	args = append(args, "-pix_fmt", "yuv420p")
	if rec.faststart {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, audioArgs(s.RemoveAudio, rec.audioCodec, "128k")...)
	return append(args, "-y", out)
}

// trimArgs renders "-ss start -t duration" with millisecond precision.
func trimArgs(start, duration float64, enabled bool) []string {
	if !enabled {
		return nil
	}
	return []string{
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
	}
}

func audioArgs(remove bool, codec, bitrate string) []string {
	if remove {
		return []string{"-an"}
	}
	return []string{"-c:a", codec, "-b:a", bitrate}
}
