// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package messages holds the user-facing status texts.
package messages

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Key names one status message.
type Key string

const (
	Checking            Key = "checking"
	Unsupported         Key = "unsupported"
	ProbeFailed         Key = "probe-failed"
	APIUnavailable      Key = "api-unavailable"
	Ready               Key = "ready"
	Starting            Key = "starting"
	StartFailed         Key = "start-failed"
	EndFailed           Key = "end-failed"
	Scanning            Key = "scanning"
	SurfaceFound        Key = "surface-found"
	Placed              Key = "placed"
	Ended               Key = "ended"
	HitTestUnsupported  Key = "hit-test-unsupported"
	HitTestSourceFailed Key = "hit-test-source-failed"
	HitTestInitFailed   Key = "hit-test-init-failed"
)

var defaults = map[Key]string{
	Checking:            "Checking AR support...",
	Unsupported:         "AR is not supported on this device or browser.",
	ProbeFailed:         "Could not verify AR support on this device.",
	APIUnavailable:      "Spatial tracking is unavailable on this device.",
	Ready:               `Ready for AR. Tap "Enter AR" on a compatible device.`,
	Starting:            "Starting AR session...",
	StartFailed:         "Failed to start AR: %s",
	EndFailed:           "Failed to end the AR session.",
	Scanning:            "Move the device to detect a surface.",
	SurfaceFound:        "Surface detected. Tap the screen to place the scene.",
	Placed:              "AR active. Scene anchored to the real world.",
	Ended:               "AR session ended.",
	HitTestUnsupported:  "Hit testing is not supported in this AR session.",
	HitTestSourceFailed: "Failed to create the hit-test source.",
	HitTestInitFailed:   "Failed to initialize hit testing. Check device support.",
}

// Catalog maps keys to text. A nil *Catalog uses the defaults.
type Catalog struct {
	text map[Key]string
}

// Default returns a catalog holding the built-in texts.
func Default() *Catalog {
	c := &Catalog{text: make(map[Key]string, len(defaults))}
	for k, v := range defaults {
		c.text[k] = v
	}
	return c
}

// Get returns the text for k.
func (c *Catalog) Get(k Key) string {
	if c != nil {
		if v, ok := c.text[k]; ok {
			return v
		}
	}
	return defaults[k]
}

// Format returns the text for k formatted with args.
func (c *Catalog) Format(k Key, args ...any) string {
	return fmt.Sprintf(c.Get(k), args...)
}

// Override replaces texts from a YAML mapping of key to text. Every key
// must be known.
func (c *Catalog) Override(data []byte) error {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse messages: %w", err)
	}

	var unknown []string
	for k := range raw {
		if _, ok := defaults[Key(k)]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown message keys: %s", strings.Join(unknown, ", "))
	}

	for k, v := range raw {
		c.text[Key(k)] = v
	}
	return nil
}

// Load returns the default catalog with overrides from path applied.
// An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open messages file: %w", err)
	}
	if err := c.Override(data); err != nil {
		return nil, fmt.Errorf("messages file %s: %w", path, err)
	}
	return c, nil
}
