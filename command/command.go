// Package command implements the full command table of spec.md §4.F:
// arity validation, routing by (case-insensitive) command name, and
// translation of keyspace/store errors into typed ERR replies.
//
// Grounded on the teacher's game/connection.go dispatch shape (a
// map[string]func table of named handlers, there called `commands`),
// generalized here from in-game verbs to cache commands.
package command

import (
	"strconv"
	"strings"

	"kvcached/store"
	"kvcached/ttlqueue"
	"kvcached/wire"
)

// Deps bundles everything a handler needs: the keyspace itself, the
// TTL queue (so PEXPIRE/PTTL and the overwrite-cancels-TTL rule can be
// implemented without the store package depending on ttlqueue), the
// current time, and the SET-reply compatibility flag.
type Deps struct {
	Keyspace       *store.Keyspace
	TTL            *ttlqueue.Queue
	NowMS          func() int64
	LegacySetReply bool
	// Stats, if set, supplies the engine-level counters the INFO
	// command reports alongside the keyspace snapshot.
	Stats func() ServerStats
}

type handlerFunc func(d *Deps, args []string) wire.Reply

type spec struct {
	// minArgs/maxArgs count the full argv including the command name.
	// maxArgs <= 0 means unbounded.
	minArgs, maxArgs int
	// evenTail, if true, requires the arguments after the fixed prefix
	// (fixedTailArgs) to come in pairs (MSET, HSET).
	evenTail      bool
	fixedTailArgs int
	handler       handlerFunc
}

var table map[string]*spec

func init() {
	table = map[string]*spec{
		"GET":     {minArgs: 2, maxArgs: 2, handler: handleGet},
		"SET":     {minArgs: 3, maxArgs: 3, handler: handleSet},
		"DEL":     {minArgs: 2, maxArgs: 2, handler: handleDel},
		"EXISTS":  {minArgs: 2, maxArgs: 0, handler: handleExists},
		"MSET":    {minArgs: 3, maxArgs: 0, evenTail: true, fixedTailArgs: 0, handler: handleMSet},
		"MGET":    {minArgs: 2, maxArgs: 0, handler: handleMGet},
		"MDEL":    {minArgs: 2, maxArgs: 0, handler: handleMDel},
		"INCR":    {minArgs: 2, maxArgs: 2, handler: handleIncr(1)},
		"DECR":    {minArgs: 2, maxArgs: 2, handler: handleIncr(-1)},
		"INCRBY":  {minArgs: 3, maxArgs: 3, handler: handleIncrBy(1)},
		"DECRBY":  {minArgs: 3, maxArgs: 3, handler: handleIncrBy(-1)},
		"KEYS":    {minArgs: 2, maxArgs: 2, handler: handleKeys},
		"PEXPIRE": {minArgs: 3, maxArgs: 3, handler: handlePExpire},
		"PTTL":    {minArgs: 2, maxArgs: 2, handler: handlePTTL},
		"HGET":    {minArgs: 3, maxArgs: 3, handler: handleHGet},
		"HSET":    {minArgs: 4, maxArgs: 0, evenTail: true, fixedTailArgs: 1, handler: handleHSet},
		"HDEL":    {minArgs: 3, maxArgs: 0, handler: handleHDel},
		"HEXISTS": {minArgs: 3, maxArgs: 3, handler: handleHExists},
		"HGETALL": {minArgs: 2, maxArgs: 2, handler: handleHGetAll},
		"ZADD":    {minArgs: 4, maxArgs: 4, handler: handleZAdd},
		"ZREM":    {minArgs: 3, maxArgs: 3, handler: handleZRem},
		"ZSCORE":  {minArgs: 3, maxArgs: 3, handler: handleZScore},
		"ZQUERY":  {minArgs: 6, maxArgs: 6, handler: handleZQuery},
		"INFO":    {minArgs: 1, maxArgs: 1, handler: handleInfo},
	}
}

// Dispatch routes argv (command name followed by its arguments) to
// its handler, validating arity first. argv must be non-empty; the
// caller (conn) already rejected N=0 at the framing layer.
//
// A handler bug must not take down the engine goroutine with it (a
// single client's malformed-but-arity-valid request is still just one
// client's problem), so a panic inside the handler is recovered and
// turned into an ERR reply rather than propagating.
func Dispatch(d *Deps, argv []string) (reply wire.Reply) {
	name := strings.ToUpper(argv[0])
	s, ok := table[name]
	if !ok {
		return wire.Err(wire.CodeUnknown, "unknown command: "+argv[0])
	}
	if !arityOK(s, len(argv)) {
		return wire.Err(wire.CodeArg, "wrong number of arguments for "+name)
	}
	defer func() {
		if r := recover(); r != nil {
			reply = wire.Err(wire.CodeArg, "internal error handling "+name)
		}
	}()
	return s.handler(d, argv)
}

func arityOK(s *spec, n int) bool {
	if n < s.minArgs {
		return false
	}
	if s.maxArgs > 0 && n > s.maxArgs {
		return false
	}
	if s.evenTail {
		tail := n - 1 - s.fixedTailArgs
		if tail <= 0 || tail%2 != 0 {
			return false
		}
	}
	return true
}

// cancelTTL removes any scheduled deadline for key, implementing
// spec.md §4.D's "on DEL, on overwrite, and on expiry, the deadline is
// canceled".
func cancelTTL(d *Deps, key string) {
	d.TTL.Cancel(key)
}

func wrongTypeReply(err error) (wire.Reply, bool) {
	if wte, ok := err.(*store.WrongTypeError); ok {
		return wire.Err(wire.CodeWrongType, wte.Error()), true
	}
	return wire.Reply{}, false
}

func handleGet(d *Deps, args []string) wire.Reply {
	v, ok, err := d.Keyspace.GetString(args[1])
	if r, isWT := wrongTypeReply(err); isWT {
		return r
	}
	if !ok {
		return wire.Nil()
	}
	return wire.Str(v)
}

func handleSet(d *Deps, args []string) wire.Reply {
	d.Keyspace.SetString(args[1], args[2])
	cancelTTL(d, args[1])
	if d.LegacySetReply {
		return wire.Nil()
	}
	return wire.Str("OK")
}

func handleDel(d *Deps, args []string) wire.Reply {
	removed := d.Keyspace.Delete(args[1])
	cancelTTL(d, args[1])
	if removed {
		return wire.Int(1)
	}
	return wire.Int(0)
}

func handleExists(d *Deps, args []string) wire.Reply {
	count := int64(0)
	for _, k := range args[1:] {
		if d.Keyspace.Exists(k) {
			count++
		}
	}
	return wire.Int(count)
}

func handleMSet(d *Deps, args []string) wire.Reply {
	pairs := args[1:]
	for i := 0; i < len(pairs); i += 2 {
		d.Keyspace.SetString(pairs[i], pairs[i+1])
		cancelTTL(d, pairs[i])
	}
	return wire.Str("OK")
}

func handleMGet(d *Deps, args []string) wire.Reply {
	elements := make([]wire.Reply, 0, len(args)-1)
	for _, k := range args[1:] {
		v, ok, err := d.Keyspace.GetString(k)
		switch {
		case err != nil:
			// A key of an incompatible tag contributes NIL rather than
			// failing the whole bulk read.
			elements = append(elements, wire.Nil())
		case !ok:
			elements = append(elements, wire.Nil())
		default:
			elements = append(elements, wire.Str(v))
		}
	}
	return wire.Arr(elements...)
}

func handleMDel(d *Deps, args []string) wire.Reply {
	count := int64(0)
	for _, k := range args[1:] {
		if d.Keyspace.Delete(k) {
			count++
		}
		cancelTTL(d, k)
	}
	return wire.Int(count)
}

func handleIncr(delta int64) handlerFunc {
	return func(d *Deps, args []string) wire.Reply {
		next, err := d.Keyspace.IncrBy(args[1], delta)
		if r, isWT := wrongTypeReply(err); isWT {
			return r
		}
		if err == store.ErrNotInteger {
			return wire.Err(wire.CodeArg, "value is not an integer")
		}
		return wire.Int(next)
	}
}

func handleIncrBy(sign int64) handlerFunc {
	return func(d *Deps, args []string) wire.Reply {
		delta, perr := strconv.ParseInt(args[2], 10, 64)
		if perr != nil {
			return wire.Err(wire.CodeArg, "delta is not an integer")
		}
		next, err := d.Keyspace.IncrBy(args[1], sign*delta)
		if r, isWT := wrongTypeReply(err); isWT {
			return r
		}
		if err == store.ErrNotInteger {
			return wire.Err(wire.CodeArg, "value is not an integer")
		}
		return wire.Int(next)
	}
}

func handleKeys(d *Deps, args []string) wire.Reply {
	keys := d.Keyspace.Keys(args[1])
	elements := make([]wire.Reply, 0, len(keys))
	for _, k := range keys {
		elements = append(elements, wire.Str(k))
	}
	return wire.Arr(elements...)
}

func handlePExpire(d *Deps, args []string) wire.Reply {
	ms, perr := strconv.ParseInt(args[2], 10, 64)
	if perr != nil {
		return wire.Err(wire.CodeArg, "ttl is not an integer")
	}
	if !d.Keyspace.Exists(args[1]) {
		return wire.Int(0)
	}
	d.TTL.Schedule(args[1], ttlqueue.DeadlineMS(d.NowMS()+ms))
	return wire.Int(1)
}

func handlePTTL(d *Deps, args []string) wire.Reply {
	if !d.Keyspace.Exists(args[1]) {
		return wire.Int(-2)
	}
	deadline, ok := d.TTL.Deadline(args[1])
	if !ok {
		return wire.Int(-1)
	}
	remaining := int64(deadline) - d.NowMS()
	if remaining < 0 {
		remaining = 0
	}
	return wire.Int(remaining)
}

func handleHGet(d *Deps, args []string) wire.Reply {
	v, ok, err := d.Keyspace.HGet(args[1], args[2])
	if r, isWT := wrongTypeReply(err); isWT {
		return r
	}
	if !ok {
		return wire.Nil()
	}
	return wire.Str(v)
}

func handleHSet(d *Deps, args []string) wire.Reply {
	key := args[1]
	pairs := args[2:]
	created := int64(0)
	for i := 0; i < len(pairs); i += 2 {
		isNew, err := d.Keyspace.HSet(key, pairs[i], pairs[i+1])
		if r, isWT := wrongTypeReply(err); isWT {
			return r
		}
		if isNew {
			created++
		}
	}
	return wire.Int(created)
}

func handleHDel(d *Deps, args []string) wire.Reply {
	key := args[1]
	count := int64(0)
	for _, field := range args[2:] {
		removed, err := d.Keyspace.HDel(key, field)
		if r, isWT := wrongTypeReply(err); isWT {
			return r
		}
		if removed {
			count++
		}
	}
	return wire.Int(count)
}

func handleHExists(d *Deps, args []string) wire.Reply {
	exists, err := d.Keyspace.HExists(args[1], args[2])
	if r, isWT := wrongTypeReply(err); isWT {
		return r
	}
	if exists {
		return wire.Int(1)
	}
	return wire.Int(0)
}

func handleHGetAll(d *Deps, args []string) wire.Reply {
	all, err := d.Keyspace.HGetAll(args[1])
	if r, isWT := wrongTypeReply(err); isWT {
		return r
	}
	elements := make([]wire.Reply, 0, len(all)*2)
	for field, value := range all {
		elements = append(elements, wire.Str(field), wire.Str(value))
	}
	return wire.Arr(elements...)
}

func handleZAdd(d *Deps, args []string) wire.Reply {
	score, perr := strconv.ParseFloat(args[2], 64)
	if perr != nil {
		return wire.Err(wire.CodeArg, "score is not a number")
	}
	created, err := d.Keyspace.ZAdd(args[1], args[3], score)
	if r, isWT := wrongTypeReply(err); isWT {
		return r
	}
	if err == store.ErrNaN {
		return wire.Err(wire.CodeArg, "score must not be NaN")
	}
	if created {
		return wire.Int(1)
	}
	return wire.Int(0)
}

func handleZRem(d *Deps, args []string) wire.Reply {
	removed, err := d.Keyspace.ZRem(args[1], args[2])
	if r, isWT := wrongTypeReply(err); isWT {
		return r
	}
	if removed {
		return wire.Int(1)
	}
	return wire.Int(0)
}

func handleZScore(d *Deps, args []string) wire.Reply {
	score, ok, err := d.Keyspace.ZScore(args[1], args[2])
	if r, isWT := wrongTypeReply(err); isWT {
		return r
	}
	if !ok {
		return wire.Nil()
	}
	return wire.Dbl(score)
}

func handleZQuery(d *Deps, args []string) wire.Reply {
	score, serr := strconv.ParseFloat(args[2], 64)
	if serr != nil {
		return wire.Err(wire.CodeArg, "score is not a number")
	}
	offset, oerr := strconv.Atoi(args[4])
	if oerr != nil || offset < 0 {
		return wire.Err(wire.CodeArg, "offset is not a non-negative integer")
	}
	limit, lerr := strconv.Atoi(args[5])
	if lerr != nil {
		return wire.Err(wire.CodeArg, "limit is not an integer")
	}
	pairs, err := d.Keyspace.ZQuery(args[1], score, args[3], offset, limit)
	if r, isWT := wrongTypeReply(err); isWT {
		return r
	}
	elements := make([]wire.Reply, 0, len(pairs)*2)
	for _, p := range pairs {
		elements = append(elements, wire.Str(p.Name), wire.Dbl(p.Score))
	}
	return wire.Arr(elements...)
}
