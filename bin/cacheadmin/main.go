// Command cacheadmin is a minimal administrative client: it sends one
// command over the wire protocol and prints the reply, rendering
// INFO's JSON payload as a table.
//
// Grounded on the teacher's game/stats_commands.go table-rendering
// convention (table.New(...).WithWriter(...).AddRow(...).Print()).
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rodaine/table"

	"kvcached/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:1234", "Server address.")
	timeout := flag.Duration("timeout", 5*time.Second, "Dial and round-trip timeout.")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"INFO"}
	}

	reply, err := roundTrip(*addr, *timeout, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cacheadmin:", err)
		os.Exit(1)
	}

	if args[0] == "INFO" || args[0] == "info" {
		if s, ok := reply.StrValue(); ok {
			if err := printInfoTable(s); err == nil {
				return
			}
		}
	}
	printReply(reply)
}

func roundTrip(addr string, timeout time.Duration, args []string) (wire.Reply, error) {
	netConn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return wire.Reply{}, err
	}
	defer netConn.Close()
	netConn.SetDeadline(time.Now().Add(timeout))

	if _, err := netConn.Write(wire.EncodeRequest(args)); err != nil {
		return wire.Reply{}, err
	}

	header := make([]byte, 4)
	if _, err := readFull(netConn, header); err != nil {
		return wire.Reply{}, err
	}
	payloadLen, err := wire.PeekFrameLength(header)
	if err != nil {
		return wire.Reply{}, err
	}
	payload := make([]byte, payloadLen)
	if _, err := readFull(netConn, payload); err != nil {
		return wire.Reply{}, err
	}
	return wire.DecodeResponse(payload)
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type infoPayload struct {
	UptimeMS          int64   `json:"uptime_ms"`
	Connections       int     `json:"connections"`
	CommandsProcessed int64   `json:"commands_processed"`
	Keys              int     `json:"keys"`
	Expires           int     `json:"expires"`
	Rehashing         bool    `json:"rehashing"`
	LoadFactor        float64 `json:"load_factor"`
}

func printInfoTable(raw string) error {
	var info infoPayload
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return err
	}
	t := table.New("Metric", "Value").WithWriter(os.Stdout)
	t.AddRow("uptime_ms", info.UptimeMS)
	t.AddRow("connections", info.Connections)
	t.AddRow("commands_processed", info.CommandsProcessed)
	t.AddRow("keys", info.Keys)
	t.AddRow("expires", info.Expires)
	t.AddRow("rehashing", info.Rehashing)
	t.AddRow("load_factor", fmt.Sprintf("%.3f", info.LoadFactor))
	t.Print()
	return nil
}

func printReply(r wire.Reply) {
	switch r.Type() {
	case wire.TypeNil:
		fmt.Println("(nil)")
	case wire.TypeStr:
		s, _ := r.StrValue()
		fmt.Println(s)
	case wire.TypeInt:
		v, _ := r.IntValue()
		fmt.Println(v)
	case wire.TypeDbl:
		v, _ := r.DblValue()
		fmt.Println(v)
	case wire.TypeErr:
		code, msg, _ := r.ErrValue()
		fmt.Fprintf(os.Stderr, "ERR %d: %s\n", code, msg)
	case wire.TypeArr:
		elements, _ := r.ArrValue()
		for _, e := range elements {
			printReply(e)
		}
	}
}
