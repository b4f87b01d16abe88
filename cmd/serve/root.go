package serve

import (
	"fmt"
	"strconv"
	"strings"

	cmdUtil "github.com/evkv/evkv/cmd/util"
	"github.com/evkv/evkv/rpc/common"
	"github.com/evkv/evkv/rpc/serializer"
	"github.com/evkv/evkv/rpc/server"
	"github.com/evkv/evkv/rpc/transport"
	"github.com/evkv/evkv/rpc/transport/http"
	"github.com/evkv/evkv/rpc/transport/tcp"
	"github.com/evkv/evkv/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the evkv server",
		Long:    `Start the evkv server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is EVKV_<flag> (e.g. EVKV_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID, ID=INTERVALMS or ID=INTERVALMS:CAPACITY where INTERVALMS is the reconciliation interval in milliseconds and CAPACITY bounds the pending write queue (0 = unbounded)"))

	key = "reconcile-interval"
	ServeCmd.PersistentFlags().Uint64(key, 10, cmdUtil.WrapString("Default reconciliation interval in milliseconds for shards that do not specify their own"))

	key = "queue-capacity"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Default pending write queue capacity for shards that do not specify their own (0 = unbounded)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Read/write timeout per connection in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/evkv.sock, ...)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse shards
	shardsConfig := viper.GetString("shards")
	defaultInterval := viper.GetUint64("reconcile-interval")
	defaultCapacity := viper.GetInt("queue-capacity")
	serveCmdConfig.Shards = []common.ServerShard{}
	for _, shardConfig := range strings.Split(shardsConfig, ",") {
		idPart, optsPart, hasOpts := strings.Cut(strings.TrimSpace(shardConfig), "=")

		// Parse shard ID
		shardID, err := strconv.ParseUint(strings.TrimSpace(idPart), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid shard ID %s: %v", idPart, err)
		}

		shard := common.ServerShard{
			ShardID:             shardID,
			ReconcileIntervalMS: defaultInterval,
			QueueCapacity:       defaultCapacity,
		}

		// Parse optional reconciliation interval and queue capacity
		if hasOpts {
			intervalPart, capacityPart, hasCapacity := strings.Cut(optsPart, ":")

			interval, err := strconv.ParseUint(strings.TrimSpace(intervalPart), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid reconcile interval for shard %d: %v", shardID, err)
			}
			shard.ReconcileIntervalMS = interval

			if hasCapacity {
				capacity, err := strconv.Atoi(strings.TrimSpace(capacityPart))
				if err != nil || capacity < 0 {
					return fmt.Errorf("invalid queue capacity for shard %d: %s", shardID, capacityPart)
				}
				shard.QueueCapacity = capacity
			}
		}

		serveCmdConfig.Shards = append(serveCmdConfig.Shards, shard)
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the evkv server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "gob":
		s = serializer.NewGOBSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPDefaultServerTransport()
	case "unix":
		t = unix.NewUnixDefaultServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("evkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
