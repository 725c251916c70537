package main

import (
	"context"
	"time"

	"github.com/victorjacobs/go-remotethermo/logger"
)

// loopSafely runs f until ctx is done, restarting it after a panic.
func loopSafely(ctx context.Context, f func()) {
	defer func() {
		if v := recover(); v != nil {
			log := logger.WithComponent("main")
			log.Error().Interface("panic", v).Msg("Panic, restarting")
			time.Sleep(time.Second)
			go loopSafely(ctx, f)
		}
	}()

	for ctx.Err() == nil {
		f()
	}
}
