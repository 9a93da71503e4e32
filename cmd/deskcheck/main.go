// Command deskcheck probes the results backend and, when configured, the
// failure notification socket.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/park285/arbiter-desk/internal/bridge"
	appcfg "github.com/park285/arbiter-desk/internal/config"
	"github.com/park285/arbiter-desk/internal/notify"
	"github.com/park285/arbiter-desk/internal/resultentry"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	client := bridge.NewClient(cfg.BaseURL,
		bridge.WithTimeout(8*time.Second),
		bridge.WithRetry(0),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		log.Fatalf("/healthz error: %v", err)
	}
	log.Printf("/healthz ok: %s", cfg.BaseURL)

	if cfg.TournamentID != "" {
		games, err := client.ListGames(ctx, cfg.TournamentID, 0)
		if err != nil {
			log.Printf("list_games error: %v", err)
		} else {
			log.Printf("list_games ok: tournament=%s games=%d", cfg.TournamentID, len(games))
		}
	}

	if cfg.NotifyWSURL == "" {
		log.Println("NOTIFY_WS_URL not set; skipping WS check")
		return
	}

	rep := notify.NewReporter(cfg.NotifyWSURL, notify.WithMaxAttempts(1))
	settled := make(chan notify.State, 4)
	rep.OnStateChange(func(state notify.State) {
		log.Printf("WS state: %s", state)
		if state == notify.StateConnected || state == notify.StateFailed {
			select {
			case settled <- state:
			default:
			}
		}
	})
	rep.Report(resultentry.Failure{
		Op:  "deskcheck_probe",
		Err: errors.New("connectivity probe"),
		At:  time.Now(),
	})

	t := time.NewTimer(10 * time.Second)
	defer t.Stop()
	select {
	case state := <-settled:
		if state == notify.StateFailed {
			log.Printf("WS probe failed: %s", cfg.NotifyWSURL)
		}
	case <-t.C:
		log.Printf("WS probe timed out")
	}

	cctx, ccancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer ccancel()
	_ = rep.Close(cctx)
}
