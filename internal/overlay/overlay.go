// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package overlay renders the anchoring status as text into an image,
// for the web PNG and the OLED panel.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/surface_anchor/internal/ar"
)

const (
	glyphWidth = 7
	lineHeight = 13
)

var face = basicfont.Face7x13

// Lines returns the status lines for s, wrapped to fit width pixels.
func Lines(s ar.Snapshot, width int) []string {
	cols := width / glyphWidth
	if cols < 1 {
		cols = 1
	}

	lines := []string{strings.ToUpper(string(s.State))}
	lines = append(lines, Wrap(s.Message, cols)...)
	if s.PlacementLocked {
		p := s.ScenePose.Position
		lines = append(lines, fmt.Sprintf("%.2f %.2f %.2f", p.X, p.Y, p.Z))
	}
	return lines
}

// Wrap splits text into lines of at most cols characters, breaking at
// spaces. Words longer than cols are cut.
func Wrap(text string, cols int) []string {
	var (
		lines []string
		cur   string
	)
	for _, word := range strings.Fields(text) {
		for len(word) > cols {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			lines = append(lines, word[:cols])
			word = word[cols:]
		}
		switch {
		case cur == "":
			cur = word
		case len(cur)+1+len(word) <= cols:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// Draw writes lines top-down into dst with src as the ink. Lines that
// do not fit are dropped.
func Draw(dst draw.Image, src image.Image, lines []string) {
	b := dst.Bounds()
	drawer := &font.Drawer{Dst: dst, Src: src, Face: face}

	for i, line := range lines {
		y := b.Min.Y + (i+1)*lineHeight
		if y > b.Max.Y {
			return
		}
		drawer.Dot = fixed.P(b.Min.X, y)
		drawer.DrawString(line)
	}
}

// Image renders s as white text on black.
func Image(s ar.Snapshot, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	Draw(img, image.NewUniform(color.White), Lines(s, width))
	return img
}
