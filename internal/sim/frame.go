// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"sort"
	"sync"

	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/xr"
)

type hitTestSource struct {
	space xr.ReferenceSpace

	mu   sync.Mutex
	done bool
}

func (h *hitTestSource) Cancel() {
	h.mu.Lock()
	h.done = true
	h.mu.Unlock()
}

func (h *hitTestSource) cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

type frame struct {
	session *Session
	poses   []orientation.Pose
}

func (f *frame) HitTestResults(src xr.HitTestSource) []xr.HitTestResult {
	if src == nil || !f.session.ownsSource(src) {
		return nil
	}
	out := make([]xr.HitTestResult, 0, len(f.poses))
	for _, p := range f.poses {
		out = append(out, hitResult{pose: p})
	}
	return out
}

type hitResult struct {
	pose orientation.Pose
}

func (r hitResult) Pose(space xr.ReferenceSpace) (orientation.Pose, bool) {
	if space == nil {
		return orientation.Pose{}, false
	}
	return r.pose, true
}

func sortIDs(ids []xr.ListenerID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
