// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/surface_anchor/internal/ar"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/wire"
)

type sentCommands struct {
	mu   sync.Mutex
	cmds []wire.Command
	err  error
}

func (s *sentCommands) send(cmd wire.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.cmds = append(s.cmds, cmd)
	return nil
}

func (s *sentCommands) all() []wire.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Command(nil), s.cmds...)
}

func newTestServer(t *testing.T) (*webServer, *sentCommands, *httptest.Server) {
	t.Helper()
	sent := &sentCommands{}
	s := newWebServer(sent.send)
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, sent, ts
}

func scanningState() wire.State {
	return wire.NewState(ar.Snapshot{
		State:         ar.StateScanning,
		Message:       "Move the device to detect a surface.",
		SessionActive: true,
		ScenePose:     orientation.IdentityPose(),
	}, time.UnixMilli(1000))
}

func TestStateEndpoint(t *testing.T) {
	s, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.setState(scanningState())
	resp, err = http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "scanning", body["state"])
	assert.Equal(t, true, body["session_active"])
	assert.EqualValues(t, 1000, body["ts"])
}

func TestPoseEndpoint(t *testing.T) {
	s, _, ts := newTestServer(t)

	hit := orientation.Pose{Position: orientation.Vec3{X: 0.5}, Orientation: orientation.IdentityQuaternion()}
	s.setPose(wire.Pose{Timestamp: 5, Hit: &hit})

	resp, err := http.Get(ts.URL + "/api/pose")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got wire.Pose
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotNil(t, got.Hit)
	assert.Equal(t, hit, *got.Hit)
	assert.Nil(t, got.Reticle)
}

func TestOverlayEndpoint(t *testing.T) {
	s, _, ts := newTestServer(t)
	s.setState(scanningState())

	resp, err := http.Get(ts.URL + "/api/overlay.png?w=200&h=40")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())

	resp, err = http.Get(ts.URL + "/api/overlay.png?w=0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActionEndpoint(t *testing.T) {
	_, sent, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/actions/place", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []wire.Command{{Action: wire.ActionPlace, Source: "web"}}, sent.all())

	resp, err = http.Post(ts.URL+"/api/actions/jump", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, sent.all(), 1)
}

func TestActionEndpointBrokerDown(t *testing.T) {
	_, sent, ts := newTestServer(t)
	sent.err = errors.New("not connected")

	resp, err := http.Post(ts.URL+"/api/actions/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func readWS(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocket(t *testing.T) {
	s, sent, ts := newTestServer(t)
	s.setState(scanningState())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	msg := readWS(t, conn)
	assert.Equal(t, "state", msg.Type)
	require.NotNil(t, msg.State)
	assert.Equal(t, ar.StateScanning, msg.State.State)

	require.NoError(t, conn.WriteJSON(wire.Command{Action: wire.ActionReset}))
	msg = readWS(t, conn)
	assert.Equal(t, "ack", msg.Type)
	assert.Equal(t, []wire.Command{{Action: wire.ActionReset, Source: "ws"}}, sent.all())

	require.NoError(t, conn.WriteJSON(wire.Command{Action: "fly"}))
	msg = readWS(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "unknown action")

	placed := scanningState()
	placed.State = ar.StatePlaced
	s.setState(placed)
	msg = readWS(t, conn)
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, ar.StatePlaced, msg.State.State)
}
