// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/surface_anchor/internal/config"
	"github.com/relabs-tech/surface_anchor/internal/overlay"
	"github.com/relabs-tech/surface_anchor/internal/wire"
)

const (
	overlayMaxSize  = 1024
	wsWriteTimeout  = 5 * time.Second
	wsWatcherBuffer = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsMessage is what the server pushes to a websocket client: either a
// state or the outcome of a command the client sent.
type wsMessage struct {
	Type  string      `json:"type"` // state, ack, error
	State *wire.State `json:"state,omitempty"`
	Error string      `json:"error,omitempty"`
}

// webServer keeps the latest state and pose received over MQTT and
// serves them to browsers.
type webServer struct {
	// sendCommand forwards a validated command to the producer.
	sendCommand func(wire.Command) error

	mu       sync.RWMutex
	state    *wire.State
	pose     *wire.Pose
	watchers map[chan wire.State]struct{}
}

func newWebServer(sendCommand func(wire.Command) error) *webServer {
	return &webServer{
		sendCommand: sendCommand,
		watchers:    make(map[chan wire.State]struct{}),
	}
}

func (s *webServer) setState(st wire.State) {
	s.mu.Lock()
	s.state = &st
	for ch := range s.watchers {
		select {
		case ch <- st:
		default:
			// A stalled client misses intermediate states.
		}
	}
	s.mu.Unlock()
}

func (s *webServer) setPose(p wire.Pose) {
	s.mu.Lock()
	s.pose = &p
	s.mu.Unlock()
}

func (s *webServer) latestState() (wire.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return wire.State{}, false
	}
	return *s.state, true
}

func (s *webServer) watch() (ch <-chan wire.State, cancel func()) {
	c := make(chan wire.State, wsWatcherBuffer)
	s.mu.Lock()
	s.watchers[c] = struct{}{}
	s.mu.Unlock()
	return c, func() {
		s.mu.Lock()
		delete(s.watchers, c)
		s.mu.Unlock()
	}
}

func (s *webServer) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/pose", s.handlePose).Methods(http.MethodGet)
	api.HandleFunc("/overlay.png", s.handleOverlay).Methods(http.MethodGet)
	api.HandleFunc("/actions/{action}", s.handleAction).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWS)

	// Static files from ./web as the root
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("web")))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (s *webServer) handleState(w http.ResponseWriter, _ *http.Request) {
	st, ok := s.latestState()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *webServer) handlePose(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	p := s.pose
	s.mu.RUnlock()
	if p == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, *p)
}

// handleOverlay renders the status overlay. Size defaults to 320x96 and
// can be set with ?w= and ?h=.
func (s *webServer) handleOverlay(w http.ResponseWriter, r *http.Request) {
	width, err := sizeParam(r, "w", 320)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := sizeParam(r, "h", 96)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	st, _ := s.latestState()
	img := overlay.Image(st.Snapshot, width, height)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		log.Printf("web: png encode error: %v", err)
	}
}

func sizeParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > overlayMaxSize {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func (s *webServer) handleAction(w http.ResponseWriter, r *http.Request) {
	cmd := wire.Command{Action: wire.Action(mux.Vars(r)["action"]), Source: "web"}
	if err := s.forward(cmd); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, wire.ErrUnknownAction) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusAccepted, cmd)
}

func (s *webServer) forward(cmd wire.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return s.sendCommand(cmd)
}

// handleWS pushes every state to the client and forwards the commands
// it sends. All writes happen on this goroutine.
func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	states, cancel := s.watch()
	defer cancel()

	replies := make(chan wsMessage, wsWatcherBuffer)
	done := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(done)
		for {
			var cmd wire.Command
			if err := conn.ReadJSON(&cmd); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("web: websocket read error: %v", err)
				}
				return
			}
			if cmd.Source == "" {
				cmd.Source = "ws"
			}
			reply := wsMessage{Type: "ack"}
			if err := s.forward(cmd); err != nil {
				reply = wsMessage{Type: "error", Error: err.Error()}
			}
			select {
			case replies <- reply:
			case <-quit:
				return
			}
		}
	}()

	if st, ok := s.latestState(); ok {
		if err := writeWS(conn, wsMessage{Type: "state", State: &st}); err != nil {
			return
		}
	}

	for {
		var msg wsMessage
		select {
		case <-done:
			return
		case st := <-states:
			msg = wsMessage{Type: "state", State: &st}
		case msg = <-replies:
		}
		if err := writeWS(conn, msg); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}
}

func writeWS(conn *websocket.Conn, msg wsMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// RunWeb subscribes to the producer's state and pose and serves the web
// client, forwarding browser actions to TOPIC_COMMANDS.
func RunWeb() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}

	codec, err := wire.NewCodec(cfg.PayloadEncoding)
	if err != nil {
		return err
	}

	client, err := connectMQTT("web", cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	s := newWebServer(func(cmd wire.Command) error {
		return publish(client, codec, cfg.TopicCommands, false, "command", cmd)
	})

	if err := subscribeDecoded("web", client, codec, cfg.TopicState, s.setState); err != nil {
		return err
	}
	if err := subscribeDecoded("web", client, codec, cfg.TopicPose, s.setPose); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, s.routes())
}
