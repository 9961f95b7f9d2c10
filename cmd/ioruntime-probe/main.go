// Command ioruntime-probe builds a runtime from a configuration file and
// flags, reporting which backend was selected.
//
// Run with: go run ./cmd/ioruntime-probe -config runtime.toml
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/joeycumines/go-ioruntime/driver"
	"github.com/joeycumines/go-ioruntime/ioruntime"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ioruntime-probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "path to a TOML runtime configuration")
		driverName = fs.String("driver", "", "override the driver: fusion, uring or legacy")
		logLevel   = fs.String("log-level", "", "override the log level, e.g. debug")
		timer      = fs.Bool("timer", false, "enable timers, and park until one fires")
		sleep      = fs.Duration("sleep", 10*time.Millisecond, "timer delay, with -timer")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := ioruntime.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = ioruntime.LoadConfig(*configPath); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	if *driverName != "" {
		cfg.Driver = *driverName
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *timer {
		cfg.Timer = true
	}

	level, err := ioruntime.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := ioruntime.NewLogger(stderr, level)

	// a runtime is driven by one thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	rt, err := ioruntime.BuildFromConfig(cfg, logger)
	if err != nil {
		logger.Err().
			Err(err).
			Log("build failed")
		return 1
	}
	defer rt.Close()

	fmt.Fprintf(stdout, "backend=%s uring_compiled=%t uring_available=%t thread=%d blocking=%s timer=%t\n",
		rt.Backend(),
		driver.UringCompiled,
		driver.DetectUring(),
		rt.Context().ThreadID,
		rt.Context().Blocking,
		rt.Context().TimeHandle != nil,
	)

	if h := rt.Context().TimeHandle; h != nil {
		start := h.Now()
		var fired time.Time
		h.AfterFunc(*sleep, func() { fired = h.Now() })
		for fired.IsZero() {
			if err := rt.Park(-1); err != nil {
				logger.Err().
					Err(err).
					Log("park failed")
				return 1
			}
		}
		fmt.Fprintf(stdout, "timer fired after %s\n", fired.Sub(start).Round(time.Millisecond))
	}

	return 0
}
