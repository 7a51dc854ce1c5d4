package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgrim/dayblock/internal/config"
	"github.com/danielgrim/dayblock/internal/db"
	"github.com/danielgrim/dayblock/internal/engine"
	"github.com/danielgrim/dayblock/internal/printers"
	"github.com/danielgrim/dayblock/internal/timeutil"
	"github.com/danielgrim/dayblock/internal/tui"
	"github.com/danielgrim/dayblock/internal/web"
)

func main() {
	configPathFlag := flag.String("config", "", "config file path")
	dbPathFlag := flag.String("db", "", "sqlite db path")
	workspaceFlag := flag.String("workspace", "", "workspace name")
	dateFlag := flag.String("date", "", "day to open (YYYY-MM-DD, default today)")
	webFlag := flag.Bool("web", false, "enable web server")
	webOnlyFlag := flag.Bool("web-only", false, "run web server only")
	portFlag := flag.Int("port", 0, "web server port")
	agendaFlag := flag.Bool("agenda", false, "print the day's agenda and exit")
	memosFlag := flag.Bool("memos", false, "include review memos in agenda output")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	if *dbPathFlag != "" {
		cfg.DBPath = *dbPathFlag
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "dayblock.db")
	}
	if *workspaceFlag != "" {
		cfg.Workspace = *workspaceFlag
	}
	if *webFlag {
		cfg.WebEnabled = true
	}
	if *portFlag != 0 {
		cfg.WebPort = *portFlag
	}
	if cfg.WebPort == 0 {
		cfg.WebPort = 8080
	}
	if cfg.TickSeconds <= 0 {
		cfg.TickSeconds = 1
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		log.Fatal(err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	workspace, err := store.EnsureWorkspace(ctx, cfg.Workspace)
	if err != nil {
		log.Fatal(err)
	}

	day, err := resolveDay(*dateFlag)
	if err != nil {
		log.Fatal(err)
	}

	eng := engine.New(store, timeutil.SystemClock(), workspace.ID, day)
	if err := eng.Refresh(ctx); err != nil {
		log.Fatal(err)
	}

	if *agendaFlag {
		inbox, err := eng.Inbox(ctx)
		if err != nil {
			log.Fatal(err)
		}
		agenda := &printers.Agenda{ShowMemos: *memosFlag}
		agenda.Day(workspace, eng.Day(), eng.Blocks())
		agenda.Inbox(inbox)
		agenda.Summary(eng.Blocks())
		return
	}

	tick := time.Duration(cfg.TickSeconds) * time.Second

	if cfg.WebEnabled {
		addr := fmt.Sprintf(":%d", cfg.WebPort)
		handler := web.NewServer(store, eng).Handler()
		if *webOnlyFlag {
			monitor := engine.NewMonitor(eng, tick, func(result engine.TickResult, err error) {
				if err != nil {
					log.Printf("tick error: %v", err)
				}
			})
			go monitor.Run(ctx)
			log.Printf("Web server running at http://localhost%s", addr)
			log.Fatal(http.ListenAndServe(addr, handler))
		}

		go func() {
			log.Printf("Web server running at http://localhost%s", addr)
			if err := http.ListenAndServe(addr, handler); err != nil {
				log.Printf("web server error: %v", err)
			}
		}()
	}

	if *webOnlyFlag {
		return
	}

	if err := tui.Run(store, eng, tick); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

func resolveDay(flagValue string) (time.Time, error) {
	if flagValue == "" {
		return time.Now(), nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", flagValue, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", flagValue)
	}
	return parsed, nil
}

func openStore(dbPath string) (*db.Store, error) {
	if err := config.EnsureDir(dbPath); err != nil {
		return nil, err
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	return db.NewStore(sqlDB), nil
}
