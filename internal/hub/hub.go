// Package hub owns every connected user's browsing session. All session state is touched
// only by the Run goroutine; transports talk to it through channels.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"topper.blackblock.rocks/internal/browse"
	"topper.blackblock.rocks/internal/permissions"
	"topper.blackblock.rocks/internal/persistence/snapshot"
	"topper.blackblock.rocks/internal/protocol"
	"topper.blackblock.rocks/internal/stats/custom"
)

type Config struct {
	WorldID        string
	TickRateHz     int
	SaveEveryTicks int
}

type JoinRequest struct {
	User string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Err     string
}

// Envelope carries one decoded client message. Exactly one payload field is set.
type Envelope struct {
	User  string
	Open  *protocol.OpenMsg
	Event *protocol.EventMsg
	Stat  *protocol.StatMsg
	Close *protocol.CloseMsg
}

type saveReq struct {
	Resp chan saveResp
}

type saveResp struct {
	Queued bool
	Err    string
}

type client struct {
	user    string
	out     chan []byte
	session *browse.Session
}

type Hub struct {
	cfg   Config
	deps  browse.Deps
	perms permissions.Checker
	log   *log.Logger

	clients map[string]*client

	join  chan JoinRequest
	leave chan string
	inbox chan Envelope
	save  chan saveReq
	stop  chan struct{}

	sink chan<- snapshot.StatisticsV1

	tick          atomic.Uint64
	online        atomic.Int64
	eventsTotal   atomic.Uint64
	statOpsTotal  atomic.Uint64
	savesQueued   atomic.Uint64
	saveBackpress atomic.Uint64
	sendDropped   atomic.Uint64
}

func New(cfg Config, deps browse.Deps, perms permissions.Checker, logger *log.Logger) *Hub {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 5
	}
	if cfg.SaveEveryTicks <= 0 {
		cfg.SaveEveryTicks = 300
	}
	if perms == nil {
		perms = permissions.Nobody{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[hub] ", log.LstdFlags)
	}
	if deps.Perms == nil {
		deps.Perms = perms
	}
	return &Hub{
		cfg:     cfg,
		deps:    deps,
		perms:   perms,
		log:     logger,
		clients: map[string]*client{},
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		inbox:   make(chan Envelope, 1024),
		save:    make(chan saveReq, 8),
		stop:    make(chan struct{}),
	}
}

// SetSnapshotSink sets where flushed statistic documents go. Writes happen off the hub goroutine.
func (h *Hub) SetSnapshotSink(ch chan<- snapshot.StatisticsV1) { h.sink = ch }

func (h *Hub) Join() chan<- JoinRequest { return h.join }
func (h *Hub) Leave() chan<- string     { return h.leave }
func (h *Hub) Inbox() chan<- Envelope   { return h.inbox }

func (h *Hub) Stop() { close(h.stop) }

func (h *Hub) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(h.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.stop:
			return nil
		case req := <-h.join:
			h.handleJoin(req)
		case user := <-h.leave:
			h.handleLeave(user)
		case env := <-h.inbox:
			h.handleEnvelope(env)
		case req := <-h.save:
			h.handleSave(req)
		case <-ticker.C:
			h.onTick()
		}
	}
}

func (h *Hub) onTick() {
	t := h.tick.Add(1)
	if t%uint64(h.cfg.SaveEveryTicks) == 0 {
		h.flush()
	}
}

// flush hands the store's pending changes to the sink without blocking. On backpressure the
// store stays dirty and the next save retries.
func (h *Hub) flush() (bool, error) {
	if h.sink == nil {
		return false, errors.New("snapshot sink not configured")
	}
	if h.deps.Store == nil {
		return false, nil
	}
	doc, ok := h.deps.Store.Flush()
	if !ok {
		return false, nil
	}
	select {
	case h.sink <- doc:
		h.savesQueued.Add(1)
		return true, nil
	default:
		h.deps.Store.MarkDirty()
		h.saveBackpress.Add(1)
		return false, errors.New("snapshot sink backpressure")
	}
}

// RequestSave asks the hub to flush now. queued is false when there was nothing to save.
func (h *Hub) RequestSave(ctx context.Context) (queued bool, err error) {
	resp := make(chan saveResp, 1)
	select {
	case h.save <- saveReq{Resp: resp}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Queued, errors.New(r.Err)
		}
		return r.Queued, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (h *Hub) handleSave(req saveReq) {
	queued, err := h.flush()
	r := saveResp{Queued: queued}
	if err != nil {
		r.Err = err.Error()
	}
	select {
	case req.Resp <- r:
	default:
	}
}

func (h *Hub) handleJoin(req JoinRequest) {
	var resp JoinResponse
	switch {
	case req.User == "":
		resp.Err = "empty user"
	case h.clients[req.User] != nil:
		resp.Err = "user already connected"
	default:
		h.clients[req.User] = &client{user: req.User, out: req.Out}
		h.online.Store(int64(len(h.clients)))
		resp.Welcome = h.welcome(req.User)
		h.log.Printf("join user=%s online=%d", req.User, len(h.clients))
	}
	select {
	case req.Resp <- resp:
	default:
	}
}

func (h *Hub) welcome(user string) protocol.WelcomeMsg {
	w := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		User:            user,
		WorldID:         h.cfg.WorldID,
		Elevated:        h.perms.Elevated(user),
	}
	if c := h.deps.Catalog; c != nil {
		w.Catalog = protocol.CatalogRef{
			Digest:      c.Digest,
			Count:       c.Index.Len(),
			StatsDigest: c.Stats.Digest,
			StatCount:   len(c.Stats.Defs),
		}
	}
	return w
}

func (h *Hub) handleLeave(user string) {
	if _, ok := h.clients[user]; !ok {
		return
	}
	delete(h.clients, user)
	h.online.Store(int64(len(h.clients)))
	h.log.Printf("leave user=%s online=%d", user, len(h.clients))
}

func (h *Hub) handleEnvelope(env Envelope) {
	c := h.clients[env.User]
	if c == nil {
		return
	}
	h.eventsTotal.Add(1)
	switch {
	case env.Open != nil:
		screen, err := browse.ParseScreen(env.Open.Screen)
		if err != nil {
			h.sendError(c, "", protocol.ErrBadRequest, err)
			return
		}
		s, v := browse.Open(h.deps, c.user, screen)
		c.session = s
		h.send(c, v)
	case env.Event != nil:
		if c.session == nil {
			h.sendError(c, "", protocol.ErrNoScreen, errors.New("no screen open"))
			return
		}
		ev := env.Event
		out, err := c.session.Handle(browse.Event{Action: ev.Action, Tab: ev.Tab, Page: ev.Page, Slot: ev.Slot, Shift: ev.Shift})
		if err != nil {
			h.sendError(c, "", protocol.ErrBadRequest, err)
			return
		}
		if out.View != nil {
			h.send(c, *out.View)
		}
		if len(out.Chat) > 0 {
			h.send(c, protocol.ChatMsg{Type: protocol.TypeChat, ProtocolVersion: protocol.Version, Lines: out.Chat})
		}
		if out.Give != nil {
			h.send(c, *out.Give)
		}
	case env.Stat != nil:
		h.handleStat(c, env.Stat)
	case env.Close != nil:
		c.session = nil
	}
}

func (h *Hub) handleStat(c *client, m *protocol.StatMsg) {
	h.statOpsTotal.Add(1)
	if h.deps.Store == nil {
		h.sendError(c, m.ID, protocol.ErrInternal, errors.New("statistics disabled"))
		return
	}
	scope, err := custom.ParseScope(m.Scope)
	if err != nil {
		h.sendError(c, m.ID, errCode(err), err)
		return
	}
	req := custom.Request{
		Op:     custom.Op(m.Op),
		Key:    m.Key,
		Name:   m.Name,
		Target: m.Target,
		Value:  m.Value,
		Scope:  scope,
		Entry:  m.Entry,
	}
	rep, err := h.deps.Store.Apply(c.user, req, h.perms)
	if err != nil {
		h.sendError(c, m.ID, errCode(err), err)
		return
	}
	h.send(c, protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              m.ID,
		OK:              true,
		Message:         rep.Message,
		Statistics:      StatisticViews(rep.Statistics),
	})
	if req.Op != custom.OpList && req.Op != custom.OpGet {
		h.refreshStatistics()
	}
}

// refreshStatistics re-renders every open statistics screen after a store change.
func (h *Hub) refreshStatistics() {
	for _, c := range h.clients {
		if c.session != nil && c.session.Screen() == browse.ScreenStatistics {
			h.send(c, c.session.Render())
		}
	}
}

func (h *Hub) sendError(c *client, id, code string, err error) {
	h.send(c, protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              id,
		OK:              false,
		Code:            code,
		Message:         err.Error(),
	})
}

func (h *Hub) send(c *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Printf("marshal %T: %v", v, err)
		return
	}
	select {
	case c.out <- b:
	default:
		// Slow client; the next full render supersedes what was dropped.
		h.sendDropped.Add(1)
	}
}

func errCode(err error) string {
	switch {
	case errors.Is(err, custom.ErrInvalidKey):
		return protocol.ErrInvalidKey
	case errors.Is(err, custom.ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, custom.ErrExists):
		return protocol.ErrConflict
	case errors.Is(err, custom.ErrNoPermission):
		return protocol.ErrNoPermission
	case errors.Is(err, custom.ErrBadRequest),
		errors.Is(err, browse.ErrUnknownAction),
		errors.Is(err, browse.ErrUnknownTab),
		errors.Is(err, browse.ErrUnknownScreen):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func StatisticViews(sts []custom.Statistic) []protocol.StatisticView {
	if len(sts) == 0 {
		return nil
	}
	out := make([]protocol.StatisticView, 0, len(sts))
	for _, st := range sts {
		ms := st.Maintainers
		if ms == nil {
			ms = []string{}
		}
		sc := st.Scores
		if sc == nil {
			sc = map[string]int{}
		}
		out = append(out, protocol.StatisticView{
			Key:          st.Key,
			DisplayName:  st.DisplayName,
			Owner:        st.Owner,
			Maintainers:  ms,
			Scores:       sc,
			DisplayEntry: st.DisplayEntry,
		})
	}
	return out
}

type Stats struct {
	Tick             uint64
	Online           int64
	EventsTotal      uint64
	StatOpsTotal     uint64
	SavesQueued      uint64
	SaveBackpressure uint64
	SendDropped      uint64
}

// Stats is safe to call from any goroutine.
func (h *Hub) Stats() Stats {
	return Stats{
		Tick:             h.tick.Load(),
		Online:           h.online.Load(),
		EventsTotal:      h.eventsTotal.Load(),
		StatOpsTotal:     h.statOpsTotal.Load(),
		SavesQueued:      h.savesQueued.Load(),
		SaveBackpressure: h.saveBackpress.Load(),
		SendDropped:      h.sendDropped.Load(),
	}
}

func (h *Hub) String() string { return fmt.Sprintf("hub(%s)", h.cfg.WorldID) }
