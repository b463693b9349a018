// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"

	"github.com/relabs-tech/surface_anchor/internal/ar"
	"github.com/relabs-tech/surface_anchor/internal/wire"
	"github.com/relabs-tech/surface_anchor/internal/xr"
)

// ErrNoSurface is returned by a place command while no surface is detected.
var ErrNoSurface = errors.New("no surface detected")

// Execute runs cmd against o. Sessions started by a command bind to
// renderer.
func Execute(ctx context.Context, o *ar.Orchestrator, renderer xr.Renderer, cmd wire.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	switch cmd.Action {
	case wire.ActionStart:
		return o.Start(ctx, renderer, nil)
	case wire.ActionEnd:
		return o.End(ctx)
	case wire.ActionPlace:
		if !o.Place() {
			return ErrNoSurface
		}
	case wire.ActionReset:
		o.Reset()
	}
	return nil
}
