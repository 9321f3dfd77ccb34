// internal/server/handlers/websocket.go

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
	"mapaeleitoral/internal/service/camera"
	"mapaeleitoral/internal/service/render"
	"mapaeleitoral/internal/service/session"
)

// Outbound message types
const (
	MessageSnapshot   = "snapshot"
	MessageURL        = "url.replace"
	MessageLayerReset = "layer.reset"
	MessageMarkers    = "layer.markers"
	MessageHeat       = "layer.heat"
	MessageLayerDone  = "layer.done"
	MessageCamera     = "camera"
	MessageEvent      = "event"
	MessageClusters   = "clusters"
	MessageAck        = "ack"
	MessageError      = "error"
)

// Inbound command types
const (
	CommandFilterSet         = "filter.set"
	CommandMarkerClick       = "marker.click"
	CommandSearch            = "search"
	CommandSearchSelect      = "search.select"
	CommandSelectionClose    = "selection.close"
	CommandClusterExpand     = "cluster.expand"
	CommandViewport          = "viewport"
	CommandIntelligenceOpen  = "intelligence.open"
	CommandIntelligenceClose = "intelligence.close"
	CommandStrategicRefresh  = "strategic.refresh"
)

var errClientClosed = errors.New("websocket client closed")

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64

	// Outbound messages buffered per client
	SendBuffer int
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS middleware
		return true
	},
}

type outbound struct {
	Type      string      `json:"type"`
	RequestID string      `json:"requestId,omitempty"`
	Version   uint64      `json:"version,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type command struct {
	Type      string           `json:"type"`
	RequestID string           `json:"requestId,omitempty"`
	Key       string           `json:"key,omitempty"`
	Value     string           `json:"value,omitempty"`
	PlaceID   election.PlaceID `json:"placeId,omitempty"`
	Term      string           `json:"term,omitempty"`
	ClusterID int              `json:"clusterId,omitempty"`
	Bounds    *render.Box      `json:"bounds,omitempty"`
	Zoom      int              `json:"zoom,omitempty"`
	Panel     string           `json:"panel,omitempty"`
	Candidate int              `json:"candidate,omitempty"`
	Office    string           `json:"office,omitempty"`
	Year      int              `json:"year,omitempty"`
}

// viewClient is the browser end of a map session. It draws the layer,
// moves the camera and mirrors the URL by forwarding to the socket, and
// turns inbound commands into session operations.
type viewClient struct {
	conn    *websocket.Conn
	session *session.Session
	config  WebSocketConfig

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	unsubscribe func()
}

var (
	_ session.View     = (*viewClient)(nil)
	_ session.Observer = (*viewClient)(nil)
)

// SessionWebSocketHandler connects a browser view to a map session
func SessionWebSocketHandler(manager *session.Manager, config WebSocketConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := manager.Get(chi.URLParam(r, "id"))
		if err != nil {
			respondWithError(w, http.StatusNotFound, "Session not found", err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Failed to upgrade to WebSocket: %v", err)
			return
		}

		if config.SendBuffer <= 0 {
			config.SendBuffer = DefaultWebSocketConfig().SendBuffer
		}
		client := &viewClient{
			conn:    conn,
			session: s,
			config:  config,
			send:    make(chan []byte, config.SendBuffer),
			done:    make(chan struct{}),
		}

		// The buffer is empty, so the snapshot is queued ahead of any event
		client.enqueue(outbound{Type: MessageSnapshot, Data: s.Snapshot()})
		client.unsubscribe = s.Subscribe(client)

		go client.writePump()

		if err := s.Attach(client); err != nil {
			log.Printf("Failed to attach view to session %s: %v", s.ID(), err)
			client.closeConnection()
			return
		}
		select {
		case <-client.done:
			s.Detach(client)
			return
		default:
		}

		log.Printf("New WebSocket connection for session %s", s.ID())

		go client.readPump()
	}
}

// readPump turns inbound messages into session commands
func (c *viewClient) readPump() {
	defer c.closeConnection()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		c.processIncomingMessage(message)
	}
}

// writePump pumps queued messages to the WebSocket connection
func (c *viewClient) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// processIncomingMessage runs one command and answers with an ack, a
// result or an error carrying the command's request id
func (c *viewClient) processIncomingMessage(message []byte) {
	var cmd command
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.enqueue(outbound{Type: MessageError, Error: "invalid message"})
		return
	}

	reply, err := c.dispatch(cmd)
	if err != nil {
		c.enqueue(outbound{Type: MessageError, RequestID: cmd.RequestID, Error: err.Error()})
		return
	}
	if reply == nil {
		reply = &outbound{Type: MessageAck}
	}
	reply.RequestID = cmd.RequestID
	c.enqueue(*reply)
}

func (c *viewClient) dispatch(cmd command) (*outbound, error) {
	s := c.session

	switch cmd.Type {
	case CommandFilterSet:
		_, err := s.Set(cmd.Key, cmd.Value)
		return nil, err

	case CommandMarkerClick:
		return nil, s.SelectPlace(cmd.PlaceID)

	case CommandSearch:
		return nil, s.Search(cmd.Term)

	case CommandSearchSelect:
		return nil, s.SelectSearchResult(cmd.PlaceID)

	case CommandSelectionClose:
		return nil, s.ClosePlace()

	case CommandClusterExpand:
		return nil, s.ExpandCluster(cmd.ClusterID)

	case CommandViewport:
		if cmd.Bounds == nil {
			return nil, fmt.Errorf("viewport requires bounds")
		}
		clusters, err := s.Clusters(*cmd.Bounds, cmd.Zoom)
		if err != nil {
			return nil, err
		}
		return &outbound{Type: MessageClusters, Data: clusters}, nil

	case CommandIntelligenceOpen:
		office, ok := filter.ParseOffice(cmd.Office)
		if !ok {
			return nil, fmt.Errorf("%w: office %q", filter.ErrInvalidValue, cmd.Office)
		}
		return nil, s.OpenIntelligence(election.IntelligencePanel(cmd.Panel), cmd.Candidate, office, filter.Year(cmd.Year))

	case CommandIntelligenceClose:
		return nil, s.CloseIntelligence()

	case CommandStrategicRefresh:
		return nil, s.RefreshStrategicPoints()
	}

	return nil, fmt.Errorf("unknown command %q", cmd.Type)
}

// enqueue waits for room in the send buffer unless the client is gone
func (c *viewClient) enqueue(msg outbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error encoding %s message: %w", msg.Type, err)
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClientClosed
	}
}

func (c *viewClient) ResetLayer(version uint64) error {
	return c.enqueue(outbound{Type: MessageLayerReset, Version: version})
}

func (c *viewClient) AddMarkers(version uint64, markers []render.Marker) error {
	return c.enqueue(outbound{Type: MessageMarkers, Version: version, Data: markers})
}

func (c *viewClient) SetHeat(version uint64, heat *render.HeatLayer) error {
	return c.enqueue(outbound{Type: MessageHeat, Version: version, Data: heat})
}

func (c *viewClient) LayerDone(version uint64, summary render.LayerSummary) error {
	return c.enqueue(outbound{Type: MessageLayerDone, Version: version, Data: summary})
}

func (c *viewClient) ApplyCamera(intent camera.Intent) error {
	return c.enqueue(outbound{Type: MessageCamera, Data: intent})
}

func (c *viewClient) ReplaceQuery(query string) {
	c.enqueue(outbound{Type: MessageURL, Data: query})
}

// Notify forwards a session event. Events are snapshots, so one is
// dropped rather than stall the session when the buffer is full.
func (c *viewClient) Notify(event session.Event) {
	data, err := json.Marshal(outbound{Type: MessageEvent, Data: event})
	if err != nil {
		log.Printf("Failed to encode %s event: %v", event.Kind, err)
		return
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		log.Printf("Dropped %s event for slow client of session %s", event.Kind, event.Session)
	}
}

// closeConnection detaches from the session and closes the socket
func (c *viewClient) closeConnection() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.session.Detach(c)
		c.conn.Close()

		log.Printf("WebSocket connection closed for session %s", c.session.ID())
	})
}
