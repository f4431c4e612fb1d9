// permitctl is a one-shot operator tool: fetch the remote permit, push a
// refresh command to the display, or print the reconciliation status.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/visproj/permitsync/internal/ble"
	"github.com/visproj/permitsync/internal/config"
	"github.com/visproj/permitsync/internal/display"
	"github.com/visproj/permitsync/internal/permit"
	"github.com/visproj/permitsync/internal/remote"
	"github.com/visproj/permitsync/internal/status"
	"github.com/visproj/permitsync/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/permitsync/config.yaml)")
	doSync := flag.Bool("sync", false, "fetch the permit from the remote source")
	doPush := flag.Bool("push", false, "command the display to re-read the permit")
	doForce := flag.Bool("force", false, "command a full display refresh (implies -push)")
	doStatus := flag.Bool("status", false, "print the permit reconciliation status")
	flag.Parse()

	if !*doSync && !*doPush && !*doForce && !*doStatus {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	slog.SetLogLoggerLevel(config.ParseLogLevel(cfg.LogLevel))

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open permit store: %v", err)
	}
	defer st.Close()

	if cfg.Remote.URL != "" {
		if err := st.SetRemoteURL(cfg.Remote.URL); err != nil {
			log.Fatalf("Failed to set remote URL: %v", err)
		}
	}

	if *doSync {
		runSync(st)
	}
	if *doPush || *doForce {
		runPush(cfg, st, *doForce)
	}
	if *doStatus {
		printStatus(st)
	}
}

func runSync(st *store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, isNew, err := remote.NewSyncer(st).Sync(ctx)
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}
	if isNew {
		fmt.Printf("Fetched new permit %s (%s - %s)\n", p.PermitNumber, p.ValidFrom, p.ValidTo)
	} else {
		fmt.Printf("Permit %s unchanged\n", p.PermitNumber)
	}
}

func runPush(cfg *config.Config, st *store.Store, force bool) {
	client := display.NewClient(ble.NewBlueZAdapter(), cfg.BLE.ScanTimeout.Std())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BLE.ScanTimeout.Std()+30*time.Second)
	defer cancel()

	if err := client.Push(ctx, force); err != nil {
		log.Fatalf("Push failed: %v", err)
	}
	fmt.Println("Display acknowledged the refresh command")

	// The display now re-reads the permit; record the confirmed round
	// trip so status reporting does not keep flagging it stale.
	p, err := st.RemotePermit()
	if err != nil {
		log.Fatalf("Failed to read cached permit: %v", err)
	}
	if p.IsValid() {
		if err := st.SetDisplayPermit(p, time.Now()); err != nil {
			log.Fatalf("Failed to mark display synced: %v", err)
		}
	}
}

func printStatus(st *store.Store) {
	snap, err := snapshot(st)
	if err != nil {
		log.Fatalf("Failed to read store: %v", err)
	}

	report := status.BuildReport(time.Now(), snap)

	fmt.Println("=== permit status ===")
	printPermit("Current", report.Current, string(report.Badge))
	if report.Scheduled != nil {
		printPermit("Scheduled", report.Scheduled, "")
	}
	if report.OutOfSync {
		fmt.Println("  Display:   OUT OF SYNC")
	} else {
		fmt.Println("  Display:   in sync")
	}
	fmt.Printf("  Synced:    %s\n", report.SyncAge)
	fmt.Printf("  Displayed: %s\n", report.DisplaySyncAge)
	if report.PriceDelta != "" {
		fmt.Printf("  Price:     %s since previous permit\n", report.PriceDelta)
	}
	fmt.Println("=====================")
}

func printPermit(label string, p *permit.Permit, badge string) {
	if !p.IsValid() {
		fmt.Printf("  %-9s none\n", label+":")
		return
	}
	line := fmt.Sprintf("  %-9s %s  plate %s  %s", label+":", p.PermitNumber, p.PlateNumber, permit.FormatDateRange(p.ValidFrom, p.ValidTo))
	if badge != "" {
		line += fmt.Sprintf("  [%s]", badge)
	}
	fmt.Println(line)
}

func snapshot(st *store.Store) (status.Snapshot, error) {
	var snap status.Snapshot
	var err error

	if snap.Remote, err = st.RemotePermit(); err != nil {
		return snap, err
	}
	if snap.Display, err = st.DisplayPermit(); err != nil {
		return snap, err
	}
	if snap.Previous, err = st.PreviousPermit(); err != nil {
		return snap, err
	}
	if snap.OutOfSync, err = st.IsDisplayOutOfSync(); err != nil {
		return snap, err
	}
	if snap.LastSync, err = st.LastSyncTime(); err != nil {
		return snap, err
	}
	if snap.LastDisplaySync, err = st.LastDisplaySyncTime(); err != nil {
		return snap, err
	}
	return snap, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		return config.Load(defaultPath)
	}
	return config.Default(), nil
}
