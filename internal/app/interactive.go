// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/relabs-tech/surface_anchor/internal/ar"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/sim"
	"github.com/relabs-tech/surface_anchor/internal/wire"
)

// syncWriter serializes writes from the prompt and from callbacks that
// run on device goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Console drives an in-process orchestrator on a simulated device one
// command at a time.
type Console struct {
	o        *ar.Orchestrator
	dev      *sim.Device
	renderer *sim.Renderer
	out      io.Writer
	unsub    []func()
}

// NewConsole creates a console over o, whose device is dev, printing
// to out.
func NewConsole(o *ar.Orchestrator, dev *sim.Device, out io.Writer) *Console {
	c := &Console{
		o:        o,
		dev:      dev,
		renderer: &sim.Renderer{},
		out:      &syncWriter{w: out},
	}
	c.unsub = append(c.unsub,
		o.Subscribe(func(s ar.Snapshot) {
			fmt.Fprintln(c.out, formatState(wire.NewState(s, time.Now())))
		}),
		o.SubscribeEvents(func(e ar.Event) {
			fmt.Fprintln(c.out, formatEvent(wire.NewEvent(e, nil, time.Now())))
		}),
	)
	return c
}

// Close stops printing changes.
func (c *Console) Close() {
	for _, fn := range c.unsub {
		fn()
	}
	c.unsub = nil
}

// session returns the live simulated session, or nil.
func (c *Console) session() *sim.Session {
	if c.dev == nil {
		return nil
	}
	s := c.dev.LastSession()
	if s == nil || s.Ended() {
		return nil
	}
	return s
}

// Exec runs one command line. It reports true when the console should
// exit.
func (c *Console) Exec(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "start", "end", "place", "reset":
		if err := Execute(ctx, c.o, c.renderer, wire.Command{Action: wire.Action(cmd), Source: "console"}); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
		// Let hit-test setup finish so the next command sees it.
		c.o.Wait()

	case "hit":
		c.cmdHit(args)

	case "miss":
		if s := c.requireSession(); s != nil {
			s.ClearHit()
		}

	case "step", "s":
		c.cmdStep(args)

	case "select", "tap":
		if s := c.requireSession(); s != nil {
			s.Select()
		}

	case "terminate":
		if s := c.requireSession(); s != nil {
			s.Terminate()
		}

	case "status":
		c.cmdStatus()

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) requireSession() *sim.Session {
	s := c.session()
	if s == nil {
		fmt.Fprintln(c.out, "Error: no active session (use 'start')")
	}
	return s
}

func (c *Console) cmdHit(args []string) {
	if len(args) < 3 || len(args) > 4 {
		fmt.Fprintln(c.out, "Usage: hit <x> <y> <z> [yaw-deg]")
		return
	}
	var v [4]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			fmt.Fprintf(c.out, "Error: invalid number %q\n", a)
			return
		}
		v[i] = f
	}
	s := c.requireSession()
	if s == nil {
		return
	}
	s.SetHit(orientation.Pose{
		Position:    orientation.Vec3{X: v[0], Y: v[1], Z: v[2]},
		Orientation: orientation.FromEuler(orientation.Euler{Yaw: v[3]}),
	})
	fmt.Fprintf(c.out, "Surface at (%.3f, %.3f, %.3f) yaw %.1f from next frame\n", v[0], v[1], v[2], v[3])
}

func (c *Console) cmdStep(args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintf(c.out, "Error: invalid frame count %q\n", args[0])
			return
		}
		n = v
	}
	if s := c.requireSession(); s != nil {
		s.StepN(n)
	}
}

func (c *Console) cmdStatus() {
	s := c.o.Snapshot()
	fmt.Fprintf(c.out, "State:    %s\n", s.State)
	fmt.Fprintf(c.out, "Message:  %s\n", s.Message)
	fmt.Fprintf(c.out, "Support:  %s\n", s.Support)
	if s.SessionActive {
		fmt.Fprintf(c.out, "Session:  %s\n", s.SessionID)
	}
	if hit, ok := c.o.HitPose(); ok {
		p := hit.Position
		fmt.Fprintf(c.out, "Hit:      (%.3f, %.3f, %.3f)\n", p.X, p.Y, p.Z)
	}
	if s.PlacementLocked {
		p := s.ScenePose.Position
		e := orientation.ToEuler(s.ScenePose.Orientation)
		fmt.Fprintf(c.out, "Scene:    (%.3f, %.3f, %.3f) yaw %.1f\n", p.X, p.Y, p.Z, e.Yaw)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Surface Anchor Commands:
  Session:
    start              - Start an AR session
    end                - End the session
    terminate          - End the session from the device side

  Placement:
    place              - Lock the scene to the detected surface
    select             - Fire the primary input (places when a surface is found)
    reset              - Unlock and scan again

  Device:
    hit <x> <y> <z> [yaw] - Report a surface hit from the next frame
    miss               - Report no surface
    step [n]           - Deliver n frames (default 1)

  Other:
    status             - Show the current state
    help               - Show this help
    quit               - Exit`)
}

// RunAnchorConsole runs the interactive console until EOF or quit.
func RunAnchorConsole(ctx context.Context, opts sim.Options, noAPI bool) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "anchor> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	var (
		dev *sim.Device
		o   *ar.Orchestrator
	)
	if noAPI {
		o = ar.New(ar.Options{})
	} else {
		dev = sim.NewDevice(opts)
		o = ar.New(ar.Options{System: dev})
	}
	defer o.Close()

	c := NewConsole(o, dev, rl.Stdout())
	defer c.Close()

	o.ProbeSupport(ctx)
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil
		}
		if c.Exec(ctx, line) {
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil
		}
	}
}
