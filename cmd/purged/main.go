// Command purged runs a single-writer purge game node: the round engine,
// its randomness coordinator, the keeper loop and the JSON-RPC front.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tolelom/purgegame/config"
	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/crypto/certgen"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/indexer"
	"github.com/tolelom/purgegame/keeper"
	"github.com/tolelom/purgegame/metrics"
	"github.com/tolelom/purgegame/randomness"
	"github.com/tolelom/purgegame/rpc"
	"github.com/tolelom/purgegame/storage"
	"github.com/tolelom/purgegame/vm"
	"github.com/tolelom/purgegame/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/purgegame/vm/modules/economy"
	_ "github.com/tolelom/purgegame/vm/modules/game"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file (.json, .yaml or .yml)")
	genKey := flag.String("genkey", "", "generate a new player key at the given path and exit")
	writeCfg := flag.String("writeconfig", "", "write the effective config as JSON to the given path and exit")
	genCerts := flag.String("gencerts", "", "generate CA, RPC server and client TLS certs into the given directory and exit (server name from chain_id)")
	flag.Parse()

	log := logrus.WithField("component", "node")

	// Read keystore password from environment (not CLI flags, they leak via ps).
	password := os.Getenv("PURGE_PASSWORD")

	// ---- generate key mode ----
	if *genKey != "" {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*genKey, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Address: %s\nSaved to: %s\n", w.PubKey(), *genKey)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if *writeCfg != "" {
		if err := config.Save(cfg, *writeCfg); err != nil {
			log.WithError(err).Fatal("write config")
		}
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		b, err := certgen.GenerateAll(*genCerts, cfg.ChainID, certOptions(cfg.RPC.Addr))
		if err != nil {
			log.WithError(err).Fatal("gencerts")
		}
		fmt.Printf("Certificates generated in %s for %q\n  server: %s\n  client: %s\n  ca:     %s\n",
			*genCerts, cfg.ChainID, b.ServerCert, b.ClientCert, b.CACert)
		return
	}
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("log level")
	}
	logrus.SetLevel(lvl)
	if password == "" {
		log.Warn("PURGE_PASSWORD not set; keystores use an empty password")
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.WithError(err).Fatal("mkdir data dir")
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		log.WithError(err).Fatal("open db")
	}
	defer db.Close()
	state := storage.NewStateDB(db)

	applied, err := config.ApplyGenesis(cfg, state)
	if err != nil {
		log.WithError(err).Fatal("genesis")
	}
	if applied {
		log.WithField("accounts", len(cfg.Genesis.Alloc)).Info("genesis alloc credited")
	}

	// ---- keys ----
	keeperWallet, err := wallet.LoadOrCreate(dataPath(cfg, cfg.Keeper.Keystore), password)
	if err != nil {
		log.WithError(err).Fatal("keeper key")
	}
	vrfWallet, err := wallet.LoadOrCreate(dataPath(cfg, cfg.Randomness.Keystore), password)
	if err != nil {
		log.WithError(err).Fatal("randomness key")
	}

	// ---- events, indexer, metrics ----
	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	collector := metrics.New()
	collector.Attach(emitter)

	// ---- engine ----
	clock := core.SystemClock{}
	coord := randomness.NewCoordinator(vrfWallet.PrivKey(), clock, time.Duration(cfg.Randomness.DelayMS)*time.Millisecond)
	exec := vm.NewExecutor(state, emitter, vm.Config{
		ChainID: cfg.ChainID,
		Clock:   clock,
		RNG:     coord,
		Params:  cfg.Game,
	})
	budget := cfg.Keeper.Budget
	if budget == 0 {
		budget = cfg.Game.DefaultBudget
	}
	k := keeper.New(state, exec, keeperWallet, collector, keeper.Options{
		Schedule:  cfg.Keeper.Schedule,
		Budget:    budget,
		MaxPerRun: cfg.Keeper.MaxPerRun,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		coord.Run(ctx)
	}()
	log.WithField("vrf_pubkey", coord.PublicKey().Hex()).Info("randomness coordinator running")

	if cfg.Keeper.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := k.Run(ctx); err != nil {
				log.WithError(err).Error("keeper stopped")
				cancel()
			}
		}()
		log.WithField("keeper", k.Address()).Info("keeper enabled")
	}

	// ---- RPC ----
	tlsCfg, err := config.LoadTLSConfig(cfg.RPC.TLS)
	if err != nil {
		log.WithError(err).Fatal("tls")
	}
	server := rpc.NewServer(cfg.RPC.Addr, rpc.NewHandler(k, idx), collector, rpc.Options{
		AuthToken: cfg.RPC.AuthToken,
		RateLimit: cfg.RPC.RateLimit,
		Burst:     cfg.RPC.Burst,
		TLS:       tlsCfg,
	})
	if err := server.Start(); err != nil {
		log.WithError(err).Fatal("rpc start")
	}
	if cfg.RPC.AuthToken != "" {
		log.Info("RPC bearer token authentication enabled")
	}

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	// 1. Stop accepting transactions, then stop the background loops.
	if err := server.Stop(); err != nil {
		log.WithError(err).Warn("rpc stop")
	}
	cancel()
	wg.Wait()

	// 2. Deferred db.Close runs last.
	log.Info("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		logrus.WithField("component", "node").Infof("config file not found at %s, using defaults", path)
		return config.Load("")
	}
	return cfg, err
}

// dataPath resolves a relative keystore path against the data directory.
func dataPath(cfg *config.Config, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.DataDir, p)
}

// certOptions adds the RPC listen host to the server cert SANs unless it
// is a wildcard address.
func certOptions(addr string) *certgen.Options {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() {
			return nil
		}
		return &certgen.Options{ExtraIPs: []net.IP{ip}}
	}
	return &certgen.Options{ExtraDNS: []string{host}}
}
