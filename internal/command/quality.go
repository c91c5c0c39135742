// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package command

import (
	"strconv"

	"github.com/ManuGH/condense/internal/media"
	"github.com/ManuGH/condense/internal/settings"
)

// X264Params is the CRF and speed preset used for one quality level.
type X264Params struct {
	CRF    int
	Preset string
}

var x264Quality = map[settings.Quality]X264Params{
	settings.QualityHigh:   {CRF: 18, Preset: "slow"},
	settings.QualityMedium: {CRF: 23, Preset: "medium"},
	settings.QualityLow:    {CRF: 28, Preset: "fast"},
}

// QualityParams returns the CRF/preset pair for q.
// Unknown or empty qualities map to medium.
func QualityParams(q settings.Quality) X264Params {
	if p, ok := x264Quality[q]; ok {
		return p
	}
	return x264Quality[settings.QualityMedium]
}

// wmv2 has no CRF mode; a fixed quantiser per level stands in for it.
var wmvQuantiser = map[settings.Quality]int{
	settings.QualityHigh:   2,
	settings.QualityMedium: 5,
	settings.QualityLow:    8,
}

type formatRecipe struct {
	videoCodec  string
	audioCodec  string
	faststart   bool
	qualityArgs func(settings.Quality) []string
}

func x264Args(q settings.Quality) []string {
	p := QualityParams(q)
	return []string{"-crf", strconv.Itoa(p.CRF), "-preset", p.Preset}
}

func vp9Args(q settings.Quality) []string {
	p := QualityParams(q)
	return []string{"-crf", strconv.Itoa(p.CRF), "-b:v", "0", "-deadline", "good", "-row-mt", "1"}
}

func wmvArgs(q settings.Quality) []string {
	qv, ok := wmvQuantiser[q]
	if !ok {
		qv = wmvQuantiser[settings.QualityMedium]
	}
	return []string{"-q:v", strconv.Itoa(qv)}
}

var (
	h264Recipe = formatRecipe{videoCodec: "libx264", audioCodec: "aac", faststart: true, qualityArgs: x264Args}
	webmRecipe = formatRecipe{videoCodec: "libvpx-vp9", audioCodec: "libopus", qualityArgs: vp9Args}
	wmvRecipe  = formatRecipe{videoCodec: "wmv2", audioCodec: "wmav2", qualityArgs: wmvArgs}
)

func recipeForFormat(f media.Format) formatRecipe {
	switch f {
	case media.FormatWebM:
		return webmRecipe
	case media.FormatWMV:
		return wmvRecipe
	default:
		return h264Recipe
	}
}
