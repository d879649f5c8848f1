package renderer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/normanking/streamavatar/internal/avatar3d"
	"github.com/normanking/streamavatar/internal/bus"
)

const (
	writeWait      = 5 * time.Second
	viewerSendSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message types sent to viewers.
const (
	MessageHello = "hello"
	MessageFrame = "frame"
	MessageEvent = "event"
)

type helloMessage struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Viewer  string `json:"viewer"`
}

// WireFrame is the JSON shape of a frame. Head is {x, y, z, w}.
type WireFrame struct {
	Head     [4]float32            `json:"head"`
	LeftEye  avatar3d.GlyphSurface `json:"left_eye"`
	RightEye avatar3d.GlyphSurface `json:"right_eye"`
	Mouth    avatar3d.GlyphSurface `json:"mouth"`
	Scale    float32               `json:"scale"`
}

type frameMessage struct {
	Type    string    `json:"type"`
	Session string    `json:"session"`
	Seq     uint64    `json:"seq"`
	Frame   WireFrame `json:"frame"`
}

type eventMessage struct {
	Type  string         `json:"type"`
	Event bus.EventType  `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

func toWire(f avatar3d.Frame) WireFrame {
	return WireFrame{
		Head:     [4]float32{f.Head.X(), f.Head.Y(), f.Head.Z(), f.Head.W},
		LeftEye:  f.LeftEye,
		RightEye: f.RightEye,
		Mouth:    f.Mouth,
		Scale:    f.Scale,
	}
}

type viewer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub is a RenderTarget that broadcasts every committed frame to connected
// browser viewers over WebSocket, at most broadcastFPS times a second.
// Writes are staged and become visible together on CommitFrame.
type Hub struct {
	pending *avatar3d.FrameTarget
	session string
	logger  zerolog.Logger
	bus     *bus.EventBus
	limiter *rate.Limiter

	frameMu sync.RWMutex
	frame   avatar3d.Frame
	seq     uint64
	notify  chan struct{}

	mu      sync.RWMutex
	viewers map[string]*viewer
	closed  bool
}

// NewHub creates a hub. eventBus may be nil; when set, avatar lifecycle
// events are forwarded to viewers.
func NewHub(broadcastFPS float64, eventBus *bus.EventBus, logger zerolog.Logger) *Hub {
	limit := rate.Inf
	if broadcastFPS > 0 {
		limit = rate.Limit(broadcastFPS)
	}
	h := &Hub{
		pending: avatar3d.NewFrameTarget(),
		frame:   avatar3d.Frame{Head: mgl32.QuatIdent()},
		session: uuid.NewString(),
		bus:     eventBus,
		limiter: rate.NewLimiter(limit, 1),
		notify:  make(chan struct{}, 1),
		viewers: make(map[string]*viewer),
	}
	h.logger = logger.With().Str("component", "frame-hub").Str("session", h.session).Logger()

	if eventBus != nil {
		eventBus.SubscribeMultiple([]bus.EventType{
			bus.EventTypeGestureStarted,
			bus.EventTypeGestureCompleted,
			bus.EventTypeGestureFailed,
			bus.EventTypeEmoteStarted,
			bus.EventTypeEmoteCompleted,
			bus.EventTypeStateChanged,
			bus.EventTypeSpeakingStarted,
			bus.EventTypeSpeakingStopped,
		}, h.forwardEvent)
	}
	return h
}

// Session identifies this hub instance on every frame.
func (h *Hub) Session() string {
	return h.session
}

// Frame returns the latest committed frame.
func (h *Hub) Frame() avatar3d.Frame {
	f, _ := h.committed()
	return f
}

// Seq counts committed frames.
func (h *Hub) Seq() uint64 {
	_, seq := h.committed()
	return seq
}

func (h *Hub) committed() (avatar3d.Frame, uint64) {
	h.frameMu.RLock()
	defer h.frameMu.RUnlock()
	return h.frame, h.seq
}

// ViewerCount returns the number of connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) SetHeadRotation(q mgl32.Quat) {
	h.pending.SetHeadRotation(q)
}

func (h *Hub) SetGlyph(slot avatar3d.GlyphSlot, surface avatar3d.GlyphSurface) {
	h.pending.SetGlyph(slot, surface)
}

func (h *Hub) SetEntranceScale(scale float32) {
	h.pending.SetEntranceScale(scale)
}

// CommitFrame publishes the staged writes as one frame and wakes Run.
func (h *Hub) CommitFrame() {
	f := h.pending.Frame()
	h.frameMu.Lock()
	h.frame = f
	h.seq++
	h.frameMu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Run broadcasts frames until ctx is done, then disconnects all viewers.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.notify:
		}

		if err := h.limiter.Wait(ctx); err != nil {
			return
		}
		if h.ViewerCount() == 0 {
			continue
		}

		frame, seq := h.committed()
		data, err := json.Marshal(frameMessage{
			Type:    MessageFrame,
			Session: h.session,
			Seq:     seq,
			Frame:   toWire(frame),
		})
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to encode frame")
			continue
		}
		h.broadcast(data)
	}
}

func (h *Hub) forwardEvent(ev bus.Event) {
	data, err := json.Marshal(eventMessage{Type: MessageEvent, Event: ev.Type, Data: ev.Data})
	if err != nil {
		h.logger.Warn().Err(err).Str("event", string(ev.Type)).Msg("Failed to encode event")
		return
	}
	h.broadcast(data)
}

// broadcast queues data for every viewer. A viewer whose queue is full
// misses this message.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, v := range h.viewers {
		select {
		case v.send <- data:
		default:
			h.logger.Debug().Str("viewer", v.id).Msg("Viewer queue full, dropping message")
		}
	}
}

func (h *Hub) register(v *viewer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.viewers[v.id] = v
	return true
}

func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	_, ok := h.viewers[v.id]
	delete(h.viewers, v.id)
	h.mu.Unlock()

	if ok {
		close(v.send)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	h.closed = true
	viewers := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.Unlock()

	closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, v := range viewers {
		_ = v.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		_ = v.conn.Close()
	}
}

// ServeHTTP upgrades the request and streams frames until the viewer
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	v := &viewer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, viewerSendSize),
	}
	if !h.register(v) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	h.logger.Info().Str("viewer", v.id).Str("remote", r.RemoteAddr).Msg("Viewer connected")
	h.publish(bus.EventTypeViewerJoined, v.id)

	hello, _ := json.Marshal(helloMessage{Type: MessageHello, Session: h.session, Viewer: v.id})
	v.send <- hello

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(v)
	}()

	h.readPump(v)
	h.unregister(v)
	<-done
	conn.Close()

	h.logger.Info().Str("viewer", v.id).Msg("Viewer disconnected")
	h.publish(bus.EventTypeViewerLeft, v.id)
}

// readPump discards client messages; it exists to notice disconnects.
func (h *Hub) readPump(v *viewer) {
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(v *viewer) {
	for data := range v.send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug().Err(err).Str("viewer", v.id).Msg("Write failed")
			v.conn.Close()
			return
		}
	}
}

func (h *Hub) publish(t bus.EventType, viewerID string) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(bus.Event{Type: t, Data: map[string]any{"viewer": viewerID}})
}

type healthResponse struct {
	Status   string `json:"status"`
	Session  string `json:"session"`
	State    string `json:"state"`
	Name     string `json:"name"`
	Sleeping bool   `json:"sleeping"`
	Entering bool   `json:"entering"`
	Frames   uint64 `json:"frames"`
	Viewers  int    `json:"viewers"`
}

// Routes mounts the viewer socket at /ws and a health check at /healthz.
func Routes(hub *Hub, loop *Loop) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := loop.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:   "ok",
			Session:  hub.Session(),
			State:    snap.State.String(),
			Name:     snap.Name,
			Sleeping: snap.Sleeping,
			Entering: snap.Entering,
			Frames:   snap.Frames,
			Viewers:  hub.ViewerCount(),
		})
	})
	return mux
}
