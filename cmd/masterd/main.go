// Command masterd is a UDP master server for legacy game-server browsers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-envparse"
	"github.com/spf13/pflag"

	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/masterd"
)

var opt struct {
	Help    bool
	EnvFile string
}

func init() {
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
	pflag.StringVarP(&opt.EnvFile, "env-file", "e", "", "Read MASTERD_* overrides from this file instead of the environment")
}

func main() {
	pflag.Parse()

	if pflag.NArg() > 1 || opt.Help {
		fmt.Printf("usage: %s [options] [prefs_file]\n\noptions:\n%s\nprefs_file defaults to ./masterd.prf; a missing file is created with defaults\n", os.Args[0], pflag.CommandLine.FlagUsages())
		if opt.Help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	prefs := "./masterd.prf"
	if pflag.NArg() == 1 {
		prefs = pflag.Arg(0)
	}

	var e []string
	if opt.EnvFile == "" {
		e = os.Environ()
	} else {
		var err error
		if e, err = readEnv(opt.EnvFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: read env file: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := masterd.Defaults()
	unknown, created, err := cfg.LoadPrefs(prefs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load preferences: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.UnmarshalEnv(e); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse config: %v\n", err)
		os.Exit(1)
	}
	cfg.Clamp()

	log := masterd.NewLogger(&cfg, os.Stdout)
	if created {
		log.Info().Str("path", prefs).Msg("wrote new preferences file with defaults")
	}
	for _, k := range unknown {
		log.Warn().Str("variable", k).Msg("unknown preferences variable")
	}

	s := masterd.NewServer(cfg, log)
	s.NotifySocket = os.Getenv("NOTIFY_SOCKET")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hch := make(chan os.Signal, 1)
	signal.Notify(hch, syscall.SIGHUP)
	go func() {
		for range hch {
			s.HandleSIGHUP()
		}
	}()

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("run server")
		os.Exit(1)
	}
}

func readEnv(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, err
	}

	var r []string
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}
