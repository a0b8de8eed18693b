package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/robfig/cron/v3"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jobvault/jobvault/app/config"
	"github.com/jobvault/jobvault/app/journal"
	"github.com/jobvault/jobvault/app/status"
	"github.com/jobvault/jobvault/app/store"
	"github.com/jobvault/jobvault/app/web"
)

var opts struct {
	Store     string `short:"s" long:"store" env:"JOBVAULT_STORE" default:"var/jobvault" description:"job status storage root"`
	Config    string `short:"f" long:"config" env:"JOBVAULT_CONFIG" description:"optional YAML tuning file"`
	Listen    string `long:"listen" env:"JOBVAULT_LISTEN" default:":8080" description:"web API listen address"`
	AuthHash  string `long:"auth-hash" env:"JOBVAULT_AUTH_HASH" description:"bcrypt password hash enabling web basic auth"`
	JournalDB string `long:"journal" env:"JOBVAULT_JOURNAL" description:"sqlite operation journal location, empty to disable"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"file" env:"FILE" default:"jobvault.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log size in megabytes"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated log files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max age of rotated log files in days"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"enable compression of rotated log files"`
	} `group:"log" namespace:"log" env-namespace:"JOBVAULT_LOG"`

	Dbg bool `long:"dbg" env:"JOBVAULT_DEBUG" description:"debug mode"`
}

var revision = "unknown"

func main() {
	fmt.Printf("jobvault %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] jobvault failed, %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return fmt.Errorf("can't load config: %w", err)
		}
		log.Printf("[INFO] loaded tuning from %s", opts.Config)
	}

	var jr *journal.Journal
	if opts.JournalDB != "" {
		var err error
		if jr, err = journal.New(opts.JournalDB); err != nil {
			return fmt.Errorf("can't open journal %s: %w", opts.JournalDB, err)
		}
		defer func() {
			if err := jr.Close(); err != nil {
				log.Printf("[WARN] failed to close journal, %v", err)
			}
		}()
	}

	storeCfg := store.Config{
		Root:        opts.Store,
		Serializer:  status.JSON{},
		CacheSize:   cfg.Store.CacheSize,
		MaxWorkers:  cfg.Store.MaxWorkers,
		IdleTimeout: time.Duration(cfg.Store.IdleTimeout),
		Blocking:    cfg.Store.Blocking,
	}
	if jr != nil {
		storeCfg.Journal = jr
	}
	if cfg.Retry.Attempts > 1 {
		storeCfg.Repeater = repeater.New(&strategy.Backoff{Repeats: cfg.Retry.Attempts,
			Duration: time.Duration(cfg.Retry.Duration), Factor: cfg.Retry.Factor, Jitter: cfg.Retry.Jitter})
	}

	st, err := store.New(storeCfg)
	if err != nil {
		return fmt.Errorf("can't make status store: %w", err)
	}
	defer st.Close() // drain pending write-behind saves
	log.Printf("[INFO] status store ready at %s", opts.Store)

	if jr != nil && cfg.Journal.Retention > 0 {
		retention := time.Duration(cfg.Journal.Retention)
		c := cron.New()
		if _, err := c.AddFunc("@daily", func() {
			n, err := jr.Prune(retention)
			if err != nil {
				log.Printf("[WARN] journal prune failed, %v", err)
				return
			}
			if n > 0 {
				log.Printf("[INFO] pruned %d journal entries older than %v", n, retention)
			}
		}); err != nil {
			return fmt.Errorf("can't schedule journal prune: %w", err)
		}
		c.Start()
		defer c.Stop()
	}

	srv := &web.Server{Store: st, Version: revision, StoreRoot: opts.Store, PasswordHash: opts.AuthHash}
	if jr != nil {
		srv.Activity = jr
	}
	return srv.Run(ctx, opts.Listen)
}

// setupLogs configures lgr and returns the log destination, stdout or a
// rotated file when file logging is enabled.
func setupLogs() io.Writer {
	logOpts := []log.Option{log.Msec, log.LevelBraces}
	if opts.Dbg {
		logOpts = []log.Option{log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces}
	}

	var out io.Writer = os.Stdout
	if opts.Log.Enabled {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
		logOpts = append(logOpts, log.Out(out), log.Err(out))
	}

	log.Setup(logOpts...)
	return out
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGTERM
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM)
}
