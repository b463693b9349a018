// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package overlay

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/surface_anchor/internal/ar"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		text string
		cols int
		want []string
	}{
		{"", 10, nil},
		{"short", 10, []string{"short"}},
		{"move the device to detect", 10, []string{"move the", "device to", "detect"}},
		{"abcdefghijkl", 5, []string{"abcde", "fghij", "kl"}},
		{"ok abcdefghijkl", 5, []string{"ok", "abcde", "fghij", "kl"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, tt.cols))
		})
	}
}

func TestLines(t *testing.T) {
	s := ar.Snapshot{State: ar.StateScanning, Message: "Move the device."}
	assert.Equal(t, []string{"SCANNING", "Move the device."}, Lines(s, 128))

	s = ar.Snapshot{
		State:           ar.StatePlaced,
		Message:         "Placed.",
		PlacementLocked: true,
		ScenePose:       orientation.Pose{Position: orientation.Vec3{X: 0.2, Z: -0.5}},
	}
	assert.Equal(t, []string{"PLACED", "Placed.", "0.20 0.00 -0.50"}, Lines(s, 128))
}

func TestImageHasInk(t *testing.T) {
	img := Image(ar.Snapshot{State: ar.StateIdle, Message: "AR is not supported."}, 128, 64)

	var lit int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{A: 0xff}) {
				lit++
			}
		}
	}
	assert.Positive(t, lit)
	assert.Less(t, lit, b.Dx()*b.Dy())
}

func TestDrawDropsOverflow(t *testing.T) {
	many := make([]string, 20)
	for i := range many {
		many[i] = "x"
	}
	img := Image(ar.Snapshot{}, 16, 13)
	assert.NotPanics(t, func() { Draw(img, img, many) })
}
