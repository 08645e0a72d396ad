// Command cacheserver runs the cache server: it accepts TCP
// connections, speaks the length-prefixed binary wire protocol, and
// serves the full command table against a single in-memory keyspace.
//
// Grounded on the teacher's bin/server/main.go flag/logfile shape,
// generalized from the teacher's SSH listener to this module's plain
// TCP listener.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"kvcached"
	"kvcached/engine"
)

func main() {
	addr := flag.String("addr", ":1234", "Address to listen on.")
	idleTimeoutMS := flag.Int64("idle-timeout-ms", 60_000, "Connection idle timeout in milliseconds.")
	legacySetReply := flag.Bool("legacy-set-reply", false, "Reply to SET with NIL instead of STR \"OK\", matching the legacy client.")
	logFile := flag.String("logfile", "", "Path to log file (default: stderr). Rotated via lumberjack when set.")
	maxAcceptPerSec := flag.Float64("max-accept-per-sec", 2000, "Maximum accepted connections per second; protects against accept-loop abuse.")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight connections to finish during shutdown.")
	writeWatermark := flag.Int("write-watermark-bytes", 16<<20, "Per-connection write-buffer watermark before BUFFER_FULL.")

	flag.Parse()

	if *logFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(engine.Config{
		IdleTimeoutMS:  *idleTimeoutMS,
		LegacySetReply: *legacySetReply,
	})
	go eng.Run(ctx)
	go logEvictions(eng)

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var setErr error
			err := c.Control(func(fd uintptr) {
				setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return setErr
		},
	}
	listener, err := lc.Listen(ctx, "tcp", *addr)
	if err != nil {
		err = kvcached.WithStack(err)
		log.Fatalf("listen on %s: %v\n%s", *addr, err, kvcached.StackTrace(err))
	}
	log.Printf("cacheserver listening on %s", *addr)

	limiter := rate.NewLimiter(rate.Limit(*maxAcceptPerSec), int(*maxAcceptPerSec))

	var wg sync.WaitGroup
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		netConn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("accept: %v", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(ctx, eng, netConn, *writeWatermark)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(*shutdownTimeout):
		log.Printf("shutdown timeout elapsed with connections still in flight")
	}
	log.Printf("cacheserver stopped")
}

func logEvictions(eng *engine.Engine) {
	for connID := range eng.Evicted() {
		log.Printf("connection %s closed: idle timeout", connID)
	}
}
