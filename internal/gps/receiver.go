// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"

	serial "github.com/jacobsa/go-serial/serial"
)

// Open opens the receiver's serial port (8N1).
func Open(port string, baud int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	rwc, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPS port %s: %w", port, err)
	}
	log.Printf("gps: serial port opened on %s at %d baud", port, baud)
	return rwc, nil
}

// Read feeds every RMC fix read from r into dst until r fails or ctx is
// done. Closing r is the caller's job; it is how a blocked read is
// interrupted.
func Read(ctx context.Context, r io.Reader, dst *Latest) error {
	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := reader.ReadString('\n')
		if fix, ok := ParseLine(line); ok {
			dst.Update(fix)
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("gps read: %w", err)
		}
	}
}
