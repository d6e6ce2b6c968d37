package serve

import (
	"fmt"

	cmdUtil "github.com/ValentinKolb/respkv/cmd/util"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/server"
	"github.com/ValentinKolb/respkv/rpc/transport"
	"github.com/ValentinKolb/respkv/rpc/transport/base"
	"github.com/ValentinKolb/respkv/rpc/transport/tcp"
	"github.com/ValentinKolb/respkv/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the respkv server",
		Long:    `Start the respkv server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is RESPKV_<flag> (e.g. RESPKV_AOF_PATH=/var/lib/respkv.aof)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:6379", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:6379, /tmp/respkv.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Idle timeout in seconds after which a client connection is closed (0 = never)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, base.DefaultReadBufferSize/1024, cmdUtil.WrapString("The number of KB read from a connection per read call"))

	key = "shards"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of store shards (0 = number of CPUs)"))

	key = "sweep-interval-ms"
	ServeCmd.PersistentFlags().Int64(key, 100, cmdUtil.WrapString("Milliseconds between two background sweeps removing expired keys (< 0 disables the sweep, expired keys are then only removed on access)"))

	key = "aof"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Enable the append-only log. Mutating commands are logged and replayed on startup"))

	key = "aof-path"
	ServeCmd.PersistentFlags().String(key, "respkv.aof", cmdUtil.WrapString("Path of the append-only log"))

	key = "aof-fsync"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Sync the append-only log to disk after every command (slower, survives power loss)"))

	key = "aof-ignore-corruption"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Start with the valid prefix of a corrupt append-only log instead of refusing to start. The corrupt tail is moved to <aof-path>.corrupt-<offset>"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the admin HTTP server serving /metrics and /healthz (empty = disabled)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport = common.TransportType(viper.GetString("transport"))
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.ReadBufferSize = viper.GetInt("read-buffer") * 1024
	serveCmdConfig.NumShards = viper.GetInt("shards")
	serveCmdConfig.SweepIntervalMillis = viper.GetInt64("sweep-interval-ms")
	serveCmdConfig.AOFEnabled = viper.GetBool("aof")
	serveCmdConfig.AOFPath = viper.GetString("aof-path")
	serveCmdConfig.AOFFsync = viper.GetBool("aof-fsync")
	serveCmdConfig.AOFIgnoreCorruption = viper.GetBool("aof-ignore-corruption")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// a sweep interval of 0 would select the engine default
	if serveCmdConfig.SweepIntervalMillis == 0 {
		return fmt.Errorf("sweep-interval-ms must not be 0 (use a negative value to disable the sweep)")
	}

	return serveCmdConfig.Validate()
}

// run starts the respkv server
func run(_ *cobra.Command, _ []string) error {

	// Parse the transport
	var t transport.IRPCServerTransport
	switch serveCmdConfig.Transport {
	case common.TransportTCP:
		t = tcp.NewTCPServerTransport(serveCmdConfig.ReadBufferSize)
	case common.TransportUnix:
		t = unix.NewUnixServerTransport(serveCmdConfig.ReadBufferSize)
	default:
		return fmt.Errorf("invalid transport %s", serveCmdConfig.Transport)
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
	)

	return serv.Serve()
}
