// Package hud streams weapon notifications to browser HUD clients over
// websockets.
package hud

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// Message types sent to clients.
const (
	TypeStatus    = "status"
	TypeFired     = "fired"
	TypeEquipped  = "equipped"
	TypeOutOfAmmo = "out_of_ammo"
)

const (
	defaultWriteWait = 5 * time.Second
	sendBuffer       = 64
)

// Message is the JSON envelope of every HUD update.
type Message struct {
	Type    string  `json:"type"`
	Weapon  string  `json:"weapon"`
	Def     string  `json:"def"`
	Pawn    string  `json:"pawn,omitempty"`
	State   string  `json:"state"`
	Clip    int     `json:"clip"`
	Reserve int     `json:"reserve"`
	Burst   int     `json:"burst,omitempty"`
	Hit     bool    `json:"hit,omitempty"`
	Target  string  `json:"target,omitempty"`
	Damage  float64 `json:"damage,omitempty"`
	TimeMS  int64   `json:"timeMs"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Feed is a weapon.Listener that fans every notification out to connected
// websocket clients. Listener callbacks never block on the network: each
// client has a bounded queue and a client that falls behind is dropped.
//
// Feed also implements http.Handler; mount it on the websocket path.
type Feed struct {
	weapon.NopListener

	logger    *zap.Logger
	writeWait time.Duration
	upgrader  websocket.Upgrader

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	latest map[weapon.ID]Message
	closed bool
}

// NewFeed returns a Feed with no clients.
//
// Precondition: writeWait <= 0 selects the default of five seconds.
func NewFeed(logger *zap.Logger, writeWait time.Duration) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	return &Feed{
		logger:    logger,
		writeWait: writeWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs:   make(map[*subscriber]struct{}),
		latest: make(map[weapon.ID]Message),
	}
}

func status(w *weapon.Weapon, typ string) Message {
	return Message{
		Type:    typ,
		Weapon:  string(w.ID()),
		Def:     w.Def().ID,
		Pawn:    string(w.Owner()),
		State:   w.State().String(),
		Clip:    w.CurrentAmmoInClip(),
		Reserve: w.CurrentAmmo(),
		TimeMS:  w.LastFireTime().Milliseconds(),
	}
}

// OnFired implements weapon.Listener.
func (f *Feed) OnFired(w *weapon.Weapon, ev weapon.FireEvent) {
	msg := status(w, TypeFired)
	msg.Burst = ev.Burst
	msg.Hit = ev.Result.Hit
	msg.Target = ev.Result.Impact.Target
	msg.Damage = ev.Result.Damage
	msg.TimeMS = ev.Time.Milliseconds()
	f.publish(w.ID(), msg)
}

// OnAmmoChanged implements weapon.Listener.
func (f *Feed) OnAmmoChanged(w *weapon.Weapon, clip, reserve int) {
	msg := status(w, TypeStatus)
	msg.Clip, msg.Reserve = clip, reserve
	f.publish(w.ID(), msg)
}

// OnStateChanged implements weapon.Listener.
func (f *Feed) OnStateChanged(w *weapon.Weapon, state weapon.State) {
	msg := status(w, TypeStatus)
	msg.State = state.String()
	f.publish(w.ID(), msg)
}

// OnEquipped implements weapon.Listener.
func (f *Feed) OnEquipped(w *weapon.Weapon) {
	f.publish(w.ID(), status(w, TypeEquipped))
}

// OnOutOfAmmo implements weapon.Listener.
func (f *Feed) OnOutOfAmmo(w *weapon.Weapon) {
	f.publish(w.ID(), status(w, TypeOutOfAmmo))
}

func (f *Feed) publish(id weapon.ID, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error("hud: marshal failed", zap.Error(err))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	snap := msg
	snap.Type = TypeStatus
	f.latest[id] = snap
	for sub := range f.subs {
		select {
		case sub.send <- data:
		default:
			f.logger.Warn("hud: client too slow, dropping", zap.String("remote", sub.conn.RemoteAddr().String()))
			delete(f.subs, sub)
			sub.close()
		}
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Latest returns the last status of every weapon seen, ordered by weapon ID.
func (f *Feed) Latest() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latestLocked()
}

// ServeHTTP upgrades the request and streams updates until the client
// disconnects. New clients first receive the latest status of every weapon.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("hud: upgrade failed", zap.Error(err))
		return
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		conn.Close()
		return
	}
	for _, m := range f.latestLocked() {
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		select {
		case sub.send <- data:
		default:
		}
	}
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	f.logger.Info("hud: client connected", zap.String("remote", conn.RemoteAddr().String()))
	go f.writeLoop(sub)
	f.readLoop(sub)
}

func (f *Feed) latestLocked() []Message {
	out := make([]Message, 0, len(f.latest))
	for _, m := range f.latest {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weapon < out[j].Weapon })
	return out
}

func (f *Feed) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for data := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(f.writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			f.logger.Debug("hud: write failed", zap.Error(err))
			f.drop(sub)
			return
		}
	}
	_ = sub.conn.SetWriteDeadline(time.Now().Add(f.writeWait))
	_ = sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards client frames; it exists to notice disconnects.
func (f *Feed) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			f.drop(sub)
			f.logger.Info("hud: client disconnected", zap.String("remote", sub.conn.RemoteAddr().String()))
			return
		}
	}
}

func (f *Feed) drop(sub *subscriber) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
	sub.close()
}

// Close disconnects every client and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for sub := range f.subs {
		delete(f.subs, sub)
		sub.close()
	}
}
