package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"omcip.game/internal/format"
	"omcip.game/internal/game"
	"omcip.game/internal/persistence/store"
	"omcip.game/internal/persistence/telemetry"
	"omcip.game/internal/session"
	"omcip.game/internal/transport/rest"
	"omcip.game/internal/transport/ws"
	"omcip.game/internal/tuning"
)

func main() {
	var (
		apiBase    = flag.String("api", "http://localhost:3000", "backend http base url")
		wsURL      = flag.String("ws", "", "push channel ws url (default: derived from -api)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		initData   = flag.String("init_data", "", "signed init data blob (or set OMCIP_INIT_DATA)")

		autoTapRate = flag.Int("auto_tap", 0, "taps per second to simulate (0 disables)")
		runFor      = flag.Duration("run_for", 0, "exit after this duration (0 runs until signal)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Printf("load tuning: %v (using defaults)", err)
		tune = tuning.Default()
	}

	db, err := store.Open(filepath.Join(*dataDir, "client.db"))
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer db.Close()

	tel := telemetry.NewWriter(filepath.Join(*dataDir, "telemetry"), "events")
	defer tel.Close()

	api := rest.NewClient(strings.TrimRight(*apiBase, "/"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}

	blob := strings.TrimSpace(*initData)
	if blob == "" {
		blob = strings.TrimSpace(os.Getenv("OMCIP_INIT_DATA"))
	}
	sess := session.NewManager(api, db, nil)
	ident, err := sess.Establish(ctx, blob)
	if err != nil {
		logger.Fatalf("establish session: %v", err)
	}
	api.SetCredentials(ident.Token, ident.UserID)

	var push game.Pusher
	var wsClient *ws.Client
	if !ident.Degraded {
		u := strings.TrimSpace(*wsURL)
		if u == "" {
			u = deriveWSURL(*apiBase)
		}
		wsClient = ws.NewClient(u, ident.Token, tune, nil)
		push = wsClient
	}

	eng := game.New(game.Config{
		Log:       logger,
		Tuning:    tune,
		Push:      push,
		Backend:   api,
		Store:     db,
		Telemetry: tel,
		Seed:      db.LoadSeed(),
	})

	if wsClient != nil {
		wsClient.OnMessage(eng.HandleMessage)
		if err := wsClient.Connect(ctx); err != nil {
			logger.Printf("push channel unavailable, click delivery falls back to http: %v", err)
		}
		defer wsClient.Close()
	}

	if !ident.Degraded {
		bootstrap(ctx, logger, eng, api, ident)
	}

	go eng.Run(ctx)
	defer eng.Close()

	if *autoTapRate > 0 {
		go autoTap(ctx, logger, eng, *autoTapRate)
	}

	<-ctx.Done()
	st := eng.State()
	logger.Printf("shutting down: coins=%s level=%d taps=%d",
		format.Compact(st.Coins), st.Level, st.TotalTaps)
}

// bootstrap pulls the authoritative snapshot and the catalogs the
// engine gates purchases on. Each fetch is best-effort; the engine
// runs on seeded local state until a later refresh succeeds.
func bootstrap(ctx context.Context, logger *log.Logger, eng *game.Engine, api *rest.Client, ident session.Identity) {
	if snap, err := api.GameState(ctx); err != nil {
		logger.Printf("initial snapshot: %v", err)
	} else {
		eng.ApplySnapshot(snap)
	}

	ups, err := api.Upgrades(ctx)
	if err != nil {
		logger.Printf("fetch upgrades: %v", err)
	}
	svcs, err := api.Services(ctx)
	if err != nil {
		logger.Printf("fetch services: %v", err)
	}
	eng.SetCatalogs(ups, svcs)

	if owned, err := api.UserUpgrades(ctx); err != nil {
		logger.Printf("fetch owned upgrades: %v", err)
	} else {
		eng.SetUserUpgrades(owned)
	}
	if lvl, err := api.AutoClickerStatus(ctx); err != nil {
		logger.Printf("fetch auto-clicker status: %v", err)
	} else {
		eng.SetAutoClickerLevel(lvl)
	}
	if n, err := api.ReferralStats(ctx); err != nil {
		logger.Printf("fetch referral stats: %v", err)
	} else {
		eng.SetInvitedFriends(n)
	}

	if ident.StartCode != "" {
		if err := api.RegisterReferral(ctx, ident.StartCode); err != nil {
			logger.Printf("register referral: %v", err)
		}
	}

	eng.RefreshTasks(ctx)
}

// autoTap drives the simulator at a fixed rate, for soak runs against
// a dev backend.
func autoTap(ctx context.Context, logger *log.Logger, eng *game.Engine, perSecond int) {
	t := time.NewTicker(time.Second / time.Duration(perSecond))
	defer t.Stop()
	accepted, rejected := 0, 0
	for {
		select {
		case <-ctx.Done():
			logger.Printf("auto-tap done: accepted=%d rejected=%d", accepted, rejected)
			return
		case <-t.C:
			if eng.Tap() {
				accepted++
			} else {
				rejected++
			}
		}
	}
}

func deriveWSURL(apiBase string) string {
	u := strings.TrimRight(apiBase, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}
