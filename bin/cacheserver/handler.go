package main

import (
	"context"
	stderrors "errors"
	"io"
	"log"
	"net"

	"kvcached"
	"kvcached/conn"
	"kvcached/engine"
	"kvcached/wire"
)

// serveConn owns one accepted socket end to end: registering it with
// the engine's idle list, draining pipelined frames, executing them,
// and flushing responses, until the peer disconnects or a protocol
// violation forces a close (spec.md §4.G).
func serveConn(ctx context.Context, eng *engine.Engine, netConn net.Conn, writeWatermark int) {
	id := kvcached.NextUniqueID()
	c := conn.New(id, netConn, writeWatermark)
	eng.RegisterConn(id, c)
	defer eng.UnregisterConn(id)
	defer c.Close()

	for {
		n, err := c.FillFromSocket()
		if n > 0 {
			eng.Touch(id)
		}
		frames, frameErr := c.DrainFrames()

		for _, f := range frames {
			if ctx.Err() != nil {
				return
			}
			reply, execErr := eng.Execute(ctx, id, f.Args)
			if execErr != nil {
				return
			}
			if appendErr := c.AppendResponse(wire.EncodeResponse(reply)); appendErr != nil {
				// No dedicated wire code for backpressure; MALFORMED is
				// the closest fit since the connection is being torn
				// down for a protocol-level reason, not a bad argument.
				c.AppendResponse(wire.EncodeResponse(wire.Err(wire.CodeMalformed, appendErr.Error())))
				c.Flush()
				return
			}
		}

		if frameErr != nil {
			code := wire.CodeMalformed
			if stderrors.Is(frameErr, wire.ErrTooBig) {
				code = wire.CodeTooBig
			}
			c.AppendResponse(wire.EncodeResponse(wire.Err(code, frameErr.Error())))
			c.Flush()
			return
		}

		if len(frames) > 0 {
			if err := c.Flush(); err != nil {
				return
			}
		}

		if err != nil {
			if err != io.EOF {
				wrapped := kvcached.WithStack(err)
				log.Printf("connection %s: read error: %v\n%s", id, wrapped, kvcached.StackTrace(wrapped))
			}
			return
		}
	}
}
