// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hamed0406/pingwatch/internal/config"
	"github.com/hamed0406/pingwatch/internal/repo/file"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	if err := config.LoadDotEnv(); err != nil {
		fail("could not read env file: " + err.Error())
	}
	cfg := config.FromEnv()

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty; POST /api/sweeps is open to anyone.")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; ping history is readable without a key.")
	}
	for _, name := range []string{"ADMIN_API_KEYS", "PUBLIC_API_KEYS"} {
		if strings.Contains(os.Getenv(name), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	ok("API_ADDR=" + cfg.Addr)

	switch {
	case cfg.DatabaseURL == "" && cfg.MonitorsFile == "":
		fail("neither DATABASE_URL nor MONITORS_FILE is set; there are no monitors to sweep.")
	case cfg.DatabaseURL == "":
		warn("DATABASE_URL empty; ping history is kept in memory and lost on restart.")
	default:
		ok("DATABASE_URL present")
	}

	if cfg.MonitorsFile != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mons, err := file.New(cfg.MonitorsFile).ListActive(ctx)
		if err != nil {
			fail("MONITORS_FILE: " + err.Error())
		}
		ok(fmt.Sprintf("MONITORS_FILE has %d active monitors", len(mons)))
	}

	if cfg.SESFromEmail == "" {
		warn("SES_FROM_EMAIL empty; email alerts will be skipped.")
	} else {
		ok("email alerts from " + cfg.SESFromEmail + " via SES in " + cfg.AWSRegion)
	}

	if cfg.ProbeTimeout >= cfg.SweepInterval {
		warn(fmt.Sprintf("PROBE_TIMEOUT_MS (%s) is not shorter than SWEEP_INTERVAL_MS (%s); ticks will be skipped while a sweep runs.", cfg.ProbeTimeout, cfg.SweepInterval))
	}
	ok(fmt.Sprintf("sweep every %s, probe timeout %s, concurrency %d", cfg.SweepInterval, cfg.ProbeTimeout, cfg.SweepConcurrency))

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows any origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
