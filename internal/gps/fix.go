// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps reads NMEA fixes from a serial receiver so placement
// events can be geo-tagged.
package gps

import (
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
)

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56.0000"
	Date       string  `json:"date"`        // dd/mm/yy as reported by the receiver
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)
}

// Valid reports whether the receiver marked the fix as active.
func (f Fix) Valid() bool {
	return f.Validity == nmea.ValidRMC
}

// ParseLine turns one NMEA line into a fix. ok is false for blank
// lines, garbage, and sentences other than RMC.
func ParseLine(line string) (fix Fix, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Fix{}, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false
	}
	m, isRMC := sentence.(nmea.RMC)
	if !isRMC {
		return Fix{}, false
	}

	return Fix{
		Time:       m.Time.String(),
		Date:       m.Date.String(),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   m.Validity,
	}, true
}

// Latest holds the most recent valid fix. The zero value is empty.
type Latest struct {
	mu  sync.RWMutex
	fix *Fix
}

// Update records f if it is valid.
func (l *Latest) Update(f Fix) {
	if !f.Valid() {
		return
	}
	l.mu.Lock()
	l.fix = &f
	l.mu.Unlock()
}

// Get returns a copy of the latest valid fix, or nil.
func (l *Latest) Get() *Fix {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fix == nil {
		return nil
	}
	f := *l.fix
	return &f
}
