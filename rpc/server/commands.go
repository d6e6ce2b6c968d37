package server

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/respkv/lib/db"
	"github.com/ValentinKolb/respkv/lib/resp"
)

// --------------------------------------------------------------------------
// Error Replies
// --------------------------------------------------------------------------

const (
	msgSyntax        = "ERR syntax error"
	msgNotInteger    = "ERR value is not an integer or out of range"
	msgWrongType     = "WRONGTYPE Operation against a key holding the wrong kind of value"
	msgInvalidExpire = "ERR invalid expire time in 'set' command"
	msgEmptyCommand  = "ERR empty command"
)

// wrongArity returns the arity error for the command (name in lower case)
func wrongArity(name string) resp.Value {
	return resp.Error(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
}

// unknownCommand echoes the command name and its arguments back to the client
func unknownCommand(frame resp.Frame) resp.Value {
	args := make([]string, 0, len(frame.Args()))
	for _, arg := range frame.Args() {
		args = append(args, "'"+string(arg)+"'")
	}
	return resp.Error(fmt.Sprintf("ERR unknown command '%s', with args beginning with: %s",
		frame.Name(), strings.Join(args, " ")))
}

// storeError translates a store error into an error reply
func storeError(err error) resp.Value {
	switch db.CodeOf(err) {
	case db.RetCWrongType:
		return resp.Error(msgWrongType)
	case db.RetCNotInteger:
		return resp.Error(msgNotInteger)
	default:
		Logger.Errorf("unexpected store error: %v", err)
		return resp.Error("ERR " + err.Error())
	}
}

// --------------------------------------------------------------------------
// Command Table
// --------------------------------------------------------------------------

// commandSpec describes one command. Arity counts the arguments after the
// command name, maxArgs < 0 means unbounded.
type commandSpec struct {
	handler  func(d *Dispatcher, args [][]byte) resp.Value
	minArgs  int
	maxArgs  int
	mutating bool // successful calls are appended to the command log
}

var commandTable = map[string]commandSpec{
	"PING":   {handler: (*Dispatcher).ping, minArgs: 0, maxArgs: 1},
	"ECHO":   {handler: (*Dispatcher).echo, minArgs: 1, maxArgs: 1},
	"GET":    {handler: (*Dispatcher).get, minArgs: 1, maxArgs: 1},
	"SET":    {handler: (*Dispatcher).set, minArgs: 2, maxArgs: -1, mutating: true},
	"EXISTS": {handler: (*Dispatcher).exists, minArgs: 1, maxArgs: -1},
	"DEL":    {handler: (*Dispatcher).del, minArgs: 1, maxArgs: -1, mutating: true},
	"INCR":   {handler: (*Dispatcher).incr, minArgs: 1, maxArgs: 1, mutating: true},
	"DECR":   {handler: (*Dispatcher).decr, minArgs: 1, maxArgs: 1, mutating: true},
	"LPUSH":  {handler: (*Dispatcher).lpush, minArgs: 2, maxArgs: -1, mutating: true},
	"RPUSH":  {handler: (*Dispatcher).rpush, minArgs: 2, maxArgs: -1, mutating: true},
	"LRANGE": {handler: (*Dispatcher).lrange, minArgs: 3, maxArgs: 3},
}

// --------------------------------------------------------------------------
// Connection Commands
// --------------------------------------------------------------------------

func (d *Dispatcher) ping(args [][]byte) resp.Value {
	if len(args) == 1 {
		return resp.NewBulkString(args[0])
	}
	return resp.Pong
}

func (d *Dispatcher) echo(args [][]byte) resp.Value {
	return resp.NewBulkString(args[0])
}

// --------------------------------------------------------------------------
// Scalar Commands
// --------------------------------------------------------------------------

func (d *Dispatcher) get(args [][]byte) resp.Value {
	value, err := d.db.Get(string(args[0]))
	if err != nil {
		if db.CodeOf(err) == db.RetCKeyAbsent {
			return resp.Null
		}
		return storeError(err)
	}
	return resp.NewBulkString(value)
}

// set handles SET key value [EX seconds | PX milliseconds]
func (d *Dispatcher) set(args [][]byte) resp.Value {
	key, value := string(args[0]), args[1]

	switch len(args) {
	case 2:
		d.db.Set(key, value)
		return resp.OK
	case 4:
		// the number is validated before the mode
		n, err := strconv.ParseInt(string(args[3]), 10, 64)
		if err != nil {
			return resp.Error(msgNotInteger)
		}

		var unit time.Duration
		switch strings.ToUpper(string(args[2])) {
		case "EX":
			unit = time.Second
		case "PX":
			unit = time.Millisecond
		default:
			return resp.Error(msgSyntax)
		}

		if n <= 0 || n > math.MaxInt64/int64(unit) {
			return resp.Error(msgInvalidExpire)
		}

		d.db.SetE(key, value, time.Duration(n)*unit)
		return resp.OK
	default:
		return resp.Error(msgSyntax)
	}
}

func (d *Dispatcher) incr(args [][]byte) resp.Value {
	n, err := d.db.Incr(string(args[0]))
	if err != nil {
		return storeError(err)
	}
	return resp.Integer(n)
}

func (d *Dispatcher) decr(args [][]byte) resp.Value {
	n, err := d.db.Decr(string(args[0]))
	if err != nil {
		return storeError(err)
	}
	return resp.Integer(n)
}

// --------------------------------------------------------------------------
// Generic Key Commands
// --------------------------------------------------------------------------

// exists counts every argument naming a live key, duplicates included
func (d *Dispatcher) exists(args [][]byte) resp.Value {
	count := 0
	for _, key := range args {
		if d.db.Has(string(key)) {
			count++
		}
	}
	return resp.Integer(count)
}

func (d *Dispatcher) del(args [][]byte) resp.Value {
	count := 0
	for _, key := range args {
		if d.db.Delete(string(key)) {
			count++
		}
	}
	return resp.Integer(count)
}

// --------------------------------------------------------------------------
// List Commands
// --------------------------------------------------------------------------

func (d *Dispatcher) lpush(args [][]byte) resp.Value {
	n, err := d.db.PushFront(string(args[0]), args[1:]...)
	if err != nil {
		return storeError(err)
	}
	return resp.Integer(n)
}

func (d *Dispatcher) rpush(args [][]byte) resp.Value {
	n, err := d.db.PushBack(string(args[0]), args[1:]...)
	if err != nil {
		return storeError(err)
	}
	return resp.Integer(n)
}

// lrange returns stop-start items starting at start, clipped to the list
func (d *Dispatcher) lrange(args [][]byte) resp.Value {
	start, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return resp.Error(msgNotInteger)
	}
	stop, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return resp.Error(msgNotInteger)
	}

	items, err := d.db.Range(string(args[0]), start, stop)
	if err != nil {
		return storeError(err)
	}

	reply := make(resp.Array, len(items))
	for i, item := range items {
		reply[i] = resp.NewBulkString(item)
	}
	return reply
}
