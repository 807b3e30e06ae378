package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io/ioutil"
	stdlog "log"
	"net/http"
	"sync"
	"time"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mastercactapus/emfi/sensor"
	"github.com/mastercactapus/emfi/station"
)

// stream intervals per connected client
const (
	cameraInterval    = 50 * time.Millisecond
	thermalInterval   = 500 * time.Millisecond
	broadcastInterval = time.Second
)

// server is the network-facing layer. All hardware access goes through
// the station's task admission, so no handler ever blocks on the serial
// port and a slow move cannot stall connected clients.
type server struct {
	log     *logrus.Logger
	station *station.Station

	thermal     *sensor.Thermal
	camera      *sensor.Camera
	calibration *sensor.Camera

	sse      *sse.Server
	upgrader websocket.Upgrader

	mx      sync.Mutex
	clients map[*client]struct{}
}

// client carries pre-marshaled messages from handlers and the broadcast
// loop to the one goroutine allowed to write the connection.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newServer(sta *station.Station, thermal *sensor.Thermal, camera, calibration *sensor.Camera, log *logrus.Logger) *server {
	return &server{
		log:         log,
		station:     sta,
		thermal:     thermal,
		camera:      camera,
		calibration: calibration,
		sse: sse.NewServer(&sse.Options{
			Logger: stdlog.New(ioutil.Discard, "", 0),
		}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (s *server) handleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.log.Errorf("websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}

	s.addClient(c)
	defer s.removeClient(c)

	// initial state so the UI renders immediately
	if state, err := json.Marshal(stateMessage{Type: "state", State: s.station.Snapshot()}); err == nil {
		c.send <- state
	}

	go s.writeLoop(c)
	s.readLoop(c)
}

// addClient registers the connection; the first client starts the
// camera capture loops.
func (s *server) addClient(c *client) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if len(s.clients) == 0 {
		s.camera.Start()
		s.calibration.Start()
	}
	s.clients[c] = struct{}{}
}

// removeClient drops the connection; the last client stops capture.
func (s *server) removeClient(c *client) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	if len(s.clients) == 0 {
		s.camera.Stop()
		s.calibration.Stop()
	}
}

func (s *server) readLoop(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(c, data)
	}
}

func (s *server) handleMessage(c *client, data []byte) {
	err := s.handleCommand(data)
	if err != nil {
		s.log.Debugf("command: %v", err)
		s.sendError(c, err)
	}
	// every command gets a fresh state pushed to all clients
	s.broadcastState()
}

func (s *server) sendError(c *client, err error) {
	msg, merr := json.Marshal(errorMessage{Type: "error", Message: err.Error()})
	if merr != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// writeLoop is the single writer for one connection: it multiplexes the
// per-client image stream timers and the queued state/error messages.
func (s *server) writeLoop(c *client) {
	cam := time.NewTicker(cameraInterval)
	cal := time.NewTicker(cameraInterval)
	thermal := time.NewTicker(thermalInterval)
	defer cam.Stop()
	defer cal.Stop()
	defer thermal.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if c.conn.WriteMessage(websocket.TextMessage, msg) != nil {
				return
			}
		case <-cam.C:
			if !s.writeFrame(c, "microscope", s.camera.LastFrame()) {
				return
			}
		case <-cal.C:
			if !s.writeFrame(c, "calibration", s.calibration.LastFrame()) {
				return
			}
		case <-thermal.C:
			if !s.writeFrame(c, "thermal_camera", s.thermal.LastFrame()) {
				return
			}
		}
	}
}

func (s *server) writeFrame(c *client, kind string, frame []byte) bool {
	msg, err := json.Marshal(frameMessage{
		Type:  kind,
		Image: base64.StdEncoding.EncodeToString(frame),
	})
	if err != nil {
		return true
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg) == nil
}

// broadcastLoop pushes the shared state update to every client and the
// SSE feed once a second.
func (s *server) broadcastLoop(ctx context.Context) {
	t := time.NewTicker(broadcastInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.broadcastState()
		}
	}
}

func (s *server) broadcastState() {
	msg, err := json.Marshal(stateMessage{Type: "state", State: s.station.Snapshot()})
	if err != nil {
		s.log.Errorf("marshal state: %v", err)
		return
	}
	s.sse.SendMessage("/events/state", sse.SimpleMessage(string(msg)))

	s.mx.Lock()
	defer s.mx.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			// slow client, drop the update
		}
	}
}
