package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"topper.blackblock.rocks/internal/catalog"
	"topper.blackblock.rocks/internal/hub"
	"topper.blackblock.rocks/internal/persistence/indexdb"
	"topper.blackblock.rocks/internal/stats/counters"
	"topper.blackblock.rocks/internal/stats/custom"
)

// saver is the part of the hub the save endpoint needs.
type saver interface {
	RequestSave(ctx context.Context) (bool, error)
	Stats() hub.Stats
}

type adminAPI struct {
	worldID string
	cat     *catalog.Catalog
	store   *custom.Store
	book    *counters.Book
	hub     saver
	idx     *indexdb.SQLiteIndex
}

// register mounts the loopback-only admin endpoints.
func (a *adminAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/statistics", loopbackOnly(a.statistics))
	mux.HandleFunc("/admin/v1/statistics/top", loopbackOnly(a.top))
	mux.HandleFunc("/admin/v1/save", loopbackOnly(a.save))
	mux.HandleFunc("/admin/v1/counters", loopbackOnly(a.counters))
}

func loopbackOnly(fn http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		fn(rw, r)
	}
}

func (a *adminAPI) statistics(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sts := a.store.List()
	if key := strings.TrimSpace(r.URL.Query().Get("key")); key != "" {
		st, ok := a.store.Get(key)
		if !ok {
			writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": "not found", "suggest": a.store.Suggest(key)})
			return
		}
		sts = []custom.Statistic{st}
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"world_id":   a.worldID,
		"dirty":      a.store.IsDirty(),
		"statistics": hub.StatisticViews(sts),
	})
}

func (a *adminAPI) top(rw http.ResponseWriter, r *http.Request) {
	if a.idx == nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "index disabled"})
		return
	}
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	rows, err := a.idx.TopScores(r.Context(), key, limit)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "key": key, "rows": rows})
}

func (a *adminAPI) save(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	queued, err := a.hub.RequestSave(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "queued": queued, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "queued": queued})
}

// counterUpdate sets or adds one built-in counter. Either Counter+Entry or Stat is set.
type counterUpdate struct {
	User    string `json:"user"`
	Counter string `json:"counter,omitempty"`
	Entry   string `json:"entry,omitempty"`
	Stat    string `json:"stat,omitempty"`
	Value   int    `json:"value"`
	Add     bool   `json:"add,omitempty"`
}

func (a *adminAPI) counters(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var ups []counterUpdate
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<20)).Decode(&ups); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json: " + err.Error()})
		return
	}
	for i, u := range ups {
		if err := a.applyCounter(u); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "applied": i, "error": err.Error()})
			return
		}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "applied": len(ups)})
}

func (a *adminAPI) applyCounter(u counterUpdate) error {
	if strings.TrimSpace(u.User) == "" {
		return fmt.Errorf("missing user")
	}
	if u.Stat != "" {
		if _, ok := a.cat.Stats.ByID[u.Stat]; !ok {
			return fmt.Errorf("unknown stat %q", u.Stat)
		}
		v := u.Value
		if u.Add {
			v += a.book.General(u.User, u.Stat)
		}
		a.book.SetGeneral(u.User, u.Stat, v)
		return nil
	}
	t, err := counters.ParseType(u.Counter)
	if err != nil {
		return err
	}
	if _, ok := a.cat.Index.Lookup(u.Entry); !ok {
		return fmt.Errorf("unknown entry %q", u.Entry)
	}
	if u.Add {
		a.book.AddCount(u.User, t, u.Entry, u.Value)
	} else {
		a.book.SetCount(u.User, t, u.Entry, u.Value)
	}
	return nil
}

func (a *adminAPI) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	m := a.hub.Stats()
	w := a.worldID

	fmt.Fprintf(rw, "# HELP topper_tick Current hub tick.\n")
	fmt.Fprintf(rw, "# TYPE topper_tick gauge\n")
	fmt.Fprintf(rw, "topper_tick{world=%q} %d\n", w, m.Tick)

	fmt.Fprintf(rw, "# HELP topper_clients Connected clients.\n")
	fmt.Fprintf(rw, "# TYPE topper_clients gauge\n")
	fmt.Fprintf(rw, "topper_clients{world=%q} %d\n", w, m.Online)

	fmt.Fprintf(rw, "# HELP topper_statistics Custom statistics in the store.\n")
	fmt.Fprintf(rw, "# TYPE topper_statistics gauge\n")
	fmt.Fprintf(rw, "topper_statistics{world=%q} %d\n", w, a.store.Len())

	fmt.Fprintf(rw, "# HELP topper_catalog_entries Registered catalog entries.\n")
	fmt.Fprintf(rw, "# TYPE topper_catalog_entries gauge\n")
	fmt.Fprintf(rw, "topper_catalog_entries{world=%q} %d\n", w, a.cat.Index.Len())

	fmt.Fprintf(rw, "# HELP topper_hub_total Hub counters.\n")
	fmt.Fprintf(rw, "# TYPE topper_hub_total counter\n")
	fmt.Fprintf(rw, "topper_hub_total{world=%q,metric=%q} %d\n", w, "events", m.EventsTotal)
	fmt.Fprintf(rw, "topper_hub_total{world=%q,metric=%q} %d\n", w, "stat_ops", m.StatOpsTotal)
	fmt.Fprintf(rw, "topper_hub_total{world=%q,metric=%q} %d\n", w, "saves_queued", m.SavesQueued)
	fmt.Fprintf(rw, "topper_hub_total{world=%q,metric=%q} %d\n", w, "save_backpressure", m.SaveBackpressure)
	fmt.Fprintf(rw, "topper_hub_total{world=%q,metric=%q} %d\n", w, "send_dropped", m.SendDropped)

	if a.idx != nil {
		s := a.idx.Stats()
		fmt.Fprintf(rw, "# HELP topper_index_queue_depth SQLite index queue depth.\n")
		fmt.Fprintf(rw, "# TYPE topper_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "topper_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP topper_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE topper_index_dropped_total counter\n")
		fmt.Fprintf(rw, "topper_index_dropped_total{kind=%q} %d\n", "save", s.DropSaveTotal)
		fmt.Fprintf(rw, "topper_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
		fmt.Fprintf(rw, "# HELP topper_index_fail_total Index writes that failed.\n")
		fmt.Fprintf(rw, "# TYPE topper_index_fail_total counter\n")
		fmt.Fprintf(rw, "topper_index_fail_total %d\n", s.FailTotal)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
