package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"topper.blackblock.rocks/internal/browse"
	"topper.blackblock.rocks/internal/catalog"
	"topper.blackblock.rocks/internal/config"
	"topper.blackblock.rocks/internal/hub"
	"topper.blackblock.rocks/internal/permissions"
	"topper.blackblock.rocks/internal/persistence/archive"
	"topper.blackblock.rocks/internal/persistence/boltstore"
	"topper.blackblock.rocks/internal/persistence/indexdb"
	persistlog "topper.blackblock.rocks/internal/persistence/log"
	"topper.blackblock.rocks/internal/persistence/snapshot"
	"topper.blackblock.rocks/internal/stats/counters"
	"topper.blackblock.rocks/internal/stats/custom"
	"topper.blackblock.rocks/internal/transport/ws"
)

// persister is a statistics backend that can also hand out a copy of itself for archiving.
type persister interface {
	custom.Persister
	archive.Source
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory (catalog.json, stat_items.json, topper.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		configPath = flag.String("config", "", "path to topper.yaml (default: <configs>/topper.yaml when present)")
		backend    = flag.String("snapshot_backend", "", "override persistence.backend: file or bolt")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cp := strings.TrimSpace(*configPath)
	if cp == "" {
		if p := filepath.Join(*configDir, "topper.yaml"); fileExists(p) {
			cp = p
		}
	}
	cfg, err := config.Load(cp)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if b := strings.TrimSpace(*backend); b != "" {
		cfg.Persistence.Backend = b
		cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			logger.Fatalf("config: %v", err)
		}
	}

	cat, err := catalog.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	logger.Printf("catalog entries=%d stats=%d digest=%s", cat.Index.Len(), len(cat.Stats.Defs), short(cat.Digest))

	worldDir := filepath.Join(*dataDir, "worlds", cfg.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	var audit auditFanout
	if cfg.Persistence.Audit {
		auditLog := persistlog.NewAuditLogger(worldDir)
		defer auditLog.Close()
		audit = append(audit, auditLog)
	}

	var idx *indexdb.SQLiteIndex
	if cfg.Persistence.Index && !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalog(cat); err != nil {
			logger.Printf("index: upsert catalog: %v", err)
		}
		audit = append(audit, idx)
	}

	p, closeP, err := openPersister(cfg, worldDir)
	if err != nil {
		logger.Fatalf("open %s backend: %v", cfg.Persistence.Backend, err)
	}
	defer closeP()

	store := custom.NewStore(custom.Options{
		WorldID:             cfg.WorldID,
		DefaultDisplayEntry: cfg.DefaultDisplayEntry,
		Audit:               audit,
	})
	loaded, skipped, err := store.Load(p)
	if err != nil {
		logger.Fatalf("load statistics from %s: %v", p.Location(), err)
	}
	logger.Printf("statistics loaded=%d skipped=%d backend=%s", loaded, skipped, cfg.Persistence.Backend)

	book := counters.NewBook()
	h := hub.New(hub.Config{
		WorldID:        cfg.WorldID,
		TickRateHz:     cfg.TickRateHz,
		SaveEveryTicks: cfg.SaveEveryTicks,
	}, browse.Deps{
		Catalog:            cat,
		Counters:           book,
		Store:              store,
		CreativePageSize:   cfg.CreativePageSize,
		StatisticsPageSize: cfg.StatisticsPageSize,
	}, permissions.Levels(cfg.Admins), log.New(os.Stdout, "[hub] ", log.LstdFlags|log.Lmicroseconds))

	afterSave := func(doc snapshot.StatisticsV1) {
		if idx != nil {
			idx.RecordSave(p.Location(), doc)
		}
		if cfg.Persistence.Archive {
			if path, ok, err := archive.Daily(*dataDir, time.Now(), doc, p); err != nil {
				logger.Printf("archive: %v", err)
			} else if ok {
				logger.Printf("archived %s", path)
			}
		}
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.StatisticsV1, 2)
	h.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		hub.WriteSnapshots(snapCh, p, store, logger, afterSave)
	}()

	ctx, cancel := signalContext()
	defer cancel()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := h.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("hub stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	adm := &adminAPI{
		worldID: cfg.WorldID,
		cat:     cat,
		store:   store,
		book:    book,
		hub:     h,
		idx:     idx,
	}
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", adm.metrics)

	if envBool("TOPPER_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		adm.register(mux)
	} else {
		logger.Printf("admin endpoints disabled (TOPPER_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("TOPPER_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(h, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s", *addr, cfg.WorldID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Drain: stop the hub, let the writer finish queued docs, then write whatever is left.
	cancel()
	<-hubDone
	close(snapCh)
	<-writerDone
	if wrote, err := store.Save(p); err != nil {
		logger.Printf("final save: %v", err)
	} else if wrote {
		afterSave(store.Export())
		logger.Printf("final save records=%d", store.Len())
	}
	if idx != nil {
		ctx3, cancel3 := context.WithTimeout(context.Background(), 5*time.Second)
		_ = idx.Sync(ctx3)
		cancel3()
	}
}

func openPersister(cfg config.Config, worldDir string) (persister, func(), error) {
	switch cfg.Persistence.Backend {
	case config.BackendBolt:
		s, err := boltstore.Open(filepath.Join(worldDir, cfg.Persistence.BoltName), cfg.WorldID)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		f := snapshot.File{Path: filepath.Join(worldDir, cfg.Persistence.FileName), WorldID: cfg.WorldID}
		return f, func() {}, nil
	}
}

type auditFanout []custom.AuditSink

func (a auditFanout) WriteAudit(e custom.AuditEntry) error {
	for _, s := range a {
		_ = s.WriteAudit(e)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
