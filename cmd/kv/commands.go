package kv

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Checks that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := rpcClient.Ping(); err != nil {
				return err
			}
			fmt.Printf("PONG (%s)\n", time.Since(start))
			return nil
		},
	}
	echoCmd = &cobra.Command{
		Use:   "echo [message]",
		Short: "Sends a message that the server returns unchanged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := rpcClient.Echo([]byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", msg)
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key (optionally with an expiry, see --ttl)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]

			ttl, _ := cmd.Flags().GetDuration("ttl")
			var err error
			if ttl > 0 {
				err = rpcClient.SetEX(key, []byte(value), ttl)
			} else {
				err = rpcClient.Set(key, []byte(value))
			}
			if err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if resp, ok, err := rpcClient.Get(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Deletes keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcClient.Del(args...)
			if err != nil {
				return err
			}
			fmt.Printf("deleted=%d\n", n)
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [key...]",
		Short: "Counts how many of the keys exist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcClient.Exists(args...)
			if err != nil {
				return err
			}
			fmt.Printf("exists=%d\n", n)
			return nil
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key]",
		Short: "Increments the integer value of a key by one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcClient.Incr(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%d\n", args[0], n)
			return nil
		},
	}
	decrCmd = &cobra.Command{
		Use:   "decr [key]",
		Short: "Decrements the integer value of a key by one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcClient.Decr(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%d\n", args[0], n)
			return nil
		},
	}
	lpushCmd = &cobra.Command{
		Use:   "lpush [key] [item...]",
		Short: "Prepends items to a list",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcClient.LPush(args[0], toBytes(args[1:])...)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, length=%d\n", args[0], n)
			return nil
		},
	}
	rpushCmd = &cobra.Command{
		Use:   "rpush [key] [item...]",
		Short: "Appends items to a list",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcClient.RPush(args[0], toBytes(args[1:])...)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, length=%d\n", args[0], n)
			return nil
		},
	}
	lrangeCmd = &cobra.Command{
		Use:   "lrange [key] [start] [stop]",
		Short: "Reads stop-start items of a list starting at start",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("start must be a number: %w", err)
			}
			stop, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("stop must be a number: %w", err)
			}

			items, err := rpcClient.LRange(args[0], start, stop)
			if err != nil {
				return err
			}
			for i, item := range items {
				fmt.Printf("%d) %s\n", start+i, item)
			}
			if len(items) == 0 {
				fmt.Println("(empty list)")
			}
			return nil
		},
	}
	rawCmd = &cobra.Command{
		Use:   "raw [command] [args...]",
		Short: "Sends an arbitrary command and prints the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := rpcClient.Do(args...)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}
)

func init() {
	setCmd.Flags().Duration("ttl", 0, "Expiry of the key (e.g. 10s, 1500ms), 0 = never")
}

func toBytes(args []string) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	return out
}
