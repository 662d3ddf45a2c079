package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/roikit/internal/canvas"
	"github.com/MeKo-Tech/roikit/internal/editor"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// EditMessage is one client command on /ws/edit. Pointer positions and drag
// deltas are canvas pixels; nudges are image pixels.
//
// Types: init, viewport, create, hit, begin, move, end, cancel, nudge, rotate.
type EditMessage struct {
	Type     string       `json:"type"`
	ROI      *roi.Record  `json:"roi,omitempty"`
	Image    *canvas.Size `json:"image,omitempty"`
	Viewport *canvas.Size `json:"viewport,omitempty"`
	Shape    string       `json:"shape,omitempty"`
	Role     string       `json:"role,omitempty"`
	Handle   string       `json:"handle,omitempty"`
	X        float64      `json:"x,omitempty"`
	Y        float64      `json:"y,omitempty"`
	DX       float64      `json:"dx,omitempty"`
	DY       float64      `json:"dy,omitempty"`
	From     *roi.Point   `json:"from,omitempty"`
	To       *roi.Point   `json:"to,omitempty"`
	Deg      float64      `json:"deg,omitempty"`
}

// EditResponse is sent after every command.
type EditResponse struct {
	Type      string               `json:"type"` // state, hit or error
	State     string               `json:"state,omitempty"`
	Handle    string               `json:"handle,omitempty"`
	ROI       *roi.Record          `json:"roi,omitempty"`
	Canvas    *roi.Record          `json:"canvas,omitempty"`
	Handles   map[string]roi.Point `json:"handles,omitempty"`
	Error     string               `json:"error,omitempty"`
	ErrorType string               `json:"error_type,omitempty"`
}

// editSession is the per-connection editor state.
type editSession struct {
	cfg    editor.Config
	xf     canvas.Transform
	image  canvas.Size
	target roi.Model
	ed     *editor.Editor
}

func newEditSession(cfg editor.Config) *editSession {
	return &editSession{cfg: cfg, xf: canvas.Identity()}
}

func (s *editSession) attach(m roi.Model) {
	s.target = m
	s.ed = editor.New(&s.target, s.xf, s.cfg)
}

func (s *editSession) setView(image, viewport *canvas.Size) {
	if image != nil {
		s.image = *image
	}
	if viewport != nil && s.image.Valid() && viewport.Valid() {
		s.xf = canvas.NewTransform(s.image, *viewport)
	}
	if s.ed != nil {
		s.ed.SetTransform(s.xf)
	}
}

// apply runs one command and returns the reply.
func (s *editSession) apply(msg EditMessage) EditResponse {
	var err error
	switch msg.Type {
	case "init":
		s.setView(msg.Image, msg.Viewport)
		if msg.ROI != nil {
			var m roi.Model
			if m, err = roi.FromRecord(*msg.ROI, s.cfg.Radii); err != nil {
				return editError("invalid_roi", err)
			}
			s.attach(m)
		}
		return s.state()
	case "viewport":
		s.setView(msg.Image, msg.Viewport)
		return s.state()
	case "create":
		return s.create(msg)
	}

	if s.ed == nil {
		return editError("invalid_request", editor.ErrNoTarget)
	}
	switch msg.Type {
	case "hit":
		return EditResponse{Type: "hit", Handle: s.ed.HitTest(roi.Pt(msg.X, msg.Y)).String()}
	case "begin":
		var h editor.Handle
		if h, err = editor.ParseHandle(msg.Handle); err == nil {
			err = s.ed.BeginDrag(h, roi.Pt(msg.X, msg.Y))
		}
	case "move":
		err = s.ed.DragDelta(roi.Pt(msg.DX, msg.DY))
	case "end":
		_, err = s.ed.DragCompleted()
	case "cancel":
		s.ed.CancelDrag()
	case "nudge":
		err = s.ed.Nudge(roi.Pt(msg.DX, msg.DY))
	case "rotate":
		err = s.ed.RotateBy(msg.Deg)
	default:
		return editError("invalid_request", fmt.Errorf("unsupported message type %q", msg.Type))
	}
	if err != nil {
		return editError("edit_error", err)
	}
	return s.state()
}

func (s *editSession) create(msg EditMessage) EditResponse {
	if msg.From == nil || msg.To == nil {
		return editError("invalid_request", errors.New("create needs from and to"))
	}
	if s.ed != nil && s.ed.State() == editor.StateCaptured {
		return editError("edit_error", editor.ErrBusy)
	}
	shape, err := roi.ParseShape(msg.Shape)
	if err != nil {
		return editError("invalid_request", err)
	}
	role := roi.Role(msg.Role)
	if role == "" {
		role = roi.RoleInspection
	}
	m, err := editor.NewFromDrag(shape, role, *msg.From, *msg.To, s.xf, s.cfg)
	if err != nil {
		return editError("edit_error", err)
	}
	s.attach(m)
	return s.state()
}

func (s *editSession) state() EditResponse {
	if s.ed == nil {
		return EditResponse{Type: "state", State: editor.StateIdle.String(), Handle: editor.HandleNone.String()}
	}
	rec := s.target.Record()
	cv := s.xf.ROIToCanvas(s.target).Record()
	resp := EditResponse{
		Type:    "state",
		State:   s.ed.State().String(),
		Handle:  s.ed.Captured().String(),
		ROI:     &rec,
		Canvas:  &cv,
		Handles: make(map[string]roi.Point),
	}
	for h, p := range s.ed.HandlePositions() {
		if s.ed.HandleEnabled(h) {
			resp.Handles[h.String()] = p
		}
	}
	return resp
}

func editError(kind string, err error) EditResponse {
	return EditResponse{Type: "error", Error: err.Error(), ErrorType: kind}
}

// editWebSocketHandler runs an interactive editing session per connection.
func (s *Server) editWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("Edit session started", "remote_addr", r.RemoteAddr)

	s.runEditSession(conn, newEditSession(s.editorCfg))
	slog.Info("Edit session ended", "remote_addr", r.RemoteAddr)
}

func (s *Server) runEditSession(conn *websocket.Conn, sess *editSession) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg EditMessage
		resp := editError("invalid_request", errors.New("malformed message"))
		if err := json.Unmarshal(data, &msg); err == nil {
			resp = sess.apply(msg)
		}
		if err := sendEditResponse(conn, resp); err != nil {
			slog.Error("Failed to send WebSocket message", "error", err)
			return
		}
	}
}

// wsWriter is the part of *websocket.Conn used for replies.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func sendEditResponse(conn wsWriter, resp EditResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}
