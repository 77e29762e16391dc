// ltfsdmd hosts the transparent recall core: it stages file contents
// back from LTFS tape when applications touch migrated or premigrated
// files.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/context"

	"github.com/intel-hpdd/logging/alert"
	"github.com/intel-hpdd/logging/debug"

	"github.com/bitinnocom/LTFS-Data-Management/server"
)

var optConfigPath string

func init() {
	flag.Var(debug.FlagVar())
	flag.StringVar(&optConfigPath, "config", server.ConfigPath(), "Path to daemon config")
}

// interruptHandler shuts down gracefully on the first signal and
// forcefully on the second.
func interruptHandler(stop, kill func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM)

	go func() {
		stopping := false
		for sig := range c {
			debug.Printf("signal received: %s", sig)
			if !stopping {
				stopping = true
				stop()
			} else {
				kill()
			}
		}
	}()
}

func main() {
	flag.Parse()

	cfg, err := server.LoadConfig(optConfigPath)
	if err != nil {
		alert.Fatalf("Failed to load config: %s", err)
	}
	debug.Printf("current configuration: %s", cfg)

	srv, err := server.New(cfg)
	if err != nil {
		alert.Fatalf("Error creating server: %s", err)
	}

	interruptHandler(srv.Stop, srv.Kill)

	if err := srv.Start(context.Background()); err != nil {
		alert.Fatalf("Error in server.Start(): %s", err)
	}
}
