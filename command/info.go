package command

import (
	"github.com/goccy/go-json"

	"kvcached/wire"
)

// ServerStats is the engine-level counters INFO reports alongside the
// keyspace snapshot (SPEC_FULL §6): uptime, live connection count, and
// total commands processed. Populated by the engine, which is the
// only place that knows these numbers.
type ServerStats struct {
	UptimeMS          int64
	Connections       int
	CommandsProcessed int64
}

// infoPayload is the JSON body of the INFO command (SPEC_FULL §6), a
// server-introspection addition the distilled spec leaves out but
// which every production key/value cache of this shape exposes.
type infoPayload struct {
	UptimeMS          int64   `json:"uptime_ms"`
	Connections       int     `json:"connections"`
	CommandsProcessed int64   `json:"commands_processed"`
	Keys              int     `json:"keys"`
	Expires           int     `json:"expires"`
	Rehashing         bool    `json:"rehashing"`
	LoadFactor        float64 `json:"load_factor"`
}

func handleInfo(d *Deps, args []string) wire.Reply {
	payload := infoPayload{
		Keys:       d.Keyspace.Len(),
		Expires:    d.TTL.Len(),
		Rehashing:  d.Keyspace.RehashingInfo(),
		LoadFactor: d.Keyspace.LoadFactor(),
	}
	if d.Stats != nil {
		stats := d.Stats()
		payload.UptimeMS = stats.UptimeMS
		payload.Connections = stats.Connections
		payload.CommandsProcessed = stats.CommandsProcessed
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return wire.Err(wire.CodeArg, "failed to encode info payload")
	}
	return wire.Str(string(buf))
}
