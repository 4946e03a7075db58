package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"GoInlineAI/app/backends"
	"GoInlineAI/app/clients"
	"GoInlineAI/app/configs"
	"GoInlineAI/app/prompts"
	"GoInlineAI/app/storage"
	"GoInlineAI/app/utils"
	"GoInlineAI/app/watcher"
)

type StartCmd struct {
	Root   string `arg:"" optional:"" default:"." help:"Directory to watch" type:"existingdir"`
	LogDir string `name:"log-dir" default:"logs" help:"Directory for the diagnostics log, empty to disable"`
}

func (c *StartCmd) Run() error {
	cfg, err := configs.LoadConfig(CLI.Config)
	if err != nil {
		return err
	}

	audit, err := utils.NewAuditLogger(os.Stdout, c.LogDir, "goinlineai", utils.ColorCyan, 200)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer audit.Close()

	journal, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer journal.Close()

	registry := clients.NewRegistry()
	if err := registry.InitializeClients(cfg.Clients); err != nil {
		return err
	}
	defer registry.CloseAll()

	ignore, err := watcher.NewIgnore(cfg.Ignore)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := watcher.NewFSSource(c.Root, ignore, cfg.Debounce, audit.Logger)
	if err != nil {
		return err
	}

	ctrl, err := watcher.NewController(watcher.Options{
		Root:           source.Root(),
		Descriptor:     cfg.Descriptor(),
		Ignore:         ignore,
		Concurrency:    cfg.Concurrency,
		InsertNewlines: cfg.InsertNewlines,
		Logger:         audit.Logger,
	}, backends.NewRetryingDispatcher(cfg.Retries+1, backends.DefaultRetryBase, audit.Logger), journal, registry)
	if err != nil {
		_ = source.Close()
		return err
	}

	go func() {
		if err := source.Run(ctx); err != nil {
			audit.Printf("❌ Watcher stopped: %v\n", err)
		}
	}()

	audit.Printf("👀 Watching %s with %s\n", source.Root(), cfg.Descriptor())
	ctrl.Run(ctx, source.Events())
	audit.Println("🛑 Watcher stopped.")
	return nil
}

func openJournal(path string) (storage.Interface, error) {
	if path == "" {
		return storage.Discard{}, nil
	}
	db, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return db, nil
}

type ScanCmd struct {
	File string `arg:"" help:"File to scan" type:"existingfile"`
}

func (c *ScanCmd) Run() error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	markers, err := prompts.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", c.File, err)
	}
	if len(markers) == 0 {
		fmt.Println("No markers found.")
		return nil
	}
	for i, m := range markers {
		fmt.Printf("%d. %s [%d,%d) %q\n", i+1, m.Kind, m.Start, m.End, m.Content)
	}
	return nil
}

type TreeCmd struct {
	Root string `arg:"" optional:"" default:"." help:"Directory to list" type:"existingdir"`
}

func (c *TreeCmd) Run() error {
	cfg, err := configs.LoadConfig(CLI.Config)
	if err != nil {
		return err
	}
	ignore, err := watcher.NewIgnore(cfg.Ignore)
	if err != nil {
		return err
	}
	tree, err := utils.BuildTree(c.Root, func(rel string, _ bool) bool {
		return ignore.Match(rel)
	})
	if err != nil {
		return err
	}
	fmt.Print(tree)
	return nil
}

type HistoryCmd struct {
	Path  string `name:"path" help:"Only show records for this file"`
	Limit int    `name:"limit" short:"n" default:"20" help:"Maximum number of records, 0 for all"`
}

func (c *HistoryCmd) Run() error {
	cfg, err := configs.LoadConfig(CLI.Config)
	if err != nil {
		return err
	}
	if cfg.Journal == "" {
		return fmt.Errorf("no journal configured, set \"journal\" in %s or DB_PATH", CLI.Config)
	}
	db, err := storage.NewSQLiteStorage(cfg.Journal)
	if err != nil {
		return err
	}
	defer db.Close()

	path := c.Path
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	records, err := db.GetHistory(context.Background(), path, c.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		log.Println("ℹ️ No records found")
		return nil
	}
	for _, r := range records {
		fmt.Println(r)
	}
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("goinlineai %s\n", version)
	return nil
}
