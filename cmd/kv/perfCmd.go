package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/respkv/cmd/util"
	"github.com/ValentinKolb/respkv/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for respkv servers",
		Long:    "Runs parallel benchmarks of the most important commands against a server and prints throughput plus latency percentiles",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	// latency timers of all benchmarks
	perfTimers = gometrics.NewRegistry()
)

// latencyPercentiles are printed for every benchmark
var latencyPercentiles = []float64{0.5, 0.9, 0.99}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfBenchmark is one benchmarked operation
type perfBenchmark struct {
	name string
	// prepare is called once per key before the benchmark (optional)
	prepare func(key string) error
	// op runs one operation, counter is the per-goroutine iteration
	op func(key string, counter int) error
}

func perfBenchmarks() []perfBenchmark {
	value := []byte("test")
	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	setValue := func(key string) error { return rpcClient.Set(key, value) }

	return []perfBenchmark{
		{
			name: "set",
			op:   func(key string, _ int) error { return rpcClient.Set(key, value) },
		},
		{
			name: "set-large",
			op:   func(key string, _ int) error { return rpcClient.Set(key, largeValue) },
		},
		{
			name: "set-ex",
			op:   func(key string, _ int) error { return rpcClient.SetEX(key, value, time.Minute) },
		},
		{
			name:    "get",
			prepare: setValue,
			op: func(key string, _ int) error {
				_, _, err := rpcClient.Get(key)
				return err
			},
		},
		{
			name: "incr",
			op: func(key string, _ int) error {
				_, err := rpcClient.Incr(key)
				return err
			},
		},
		{
			name: "rpush",
			op: func(key string, _ int) error {
				_, err := rpcClient.RPush(key, value)
				return err
			},
		},
		{
			name: "lrange",
			prepare: func(key string) error {
				items := make([][]byte, 10)
				for i := range items {
					items[i] = value
				}
				_, err := rpcClient.RPush(key, items...)
				return err
			},
			op: func(key string, _ int) error {
				_, err := rpcClient.LRange(key, 0, 10)
				return err
			},
		},
		{
			name:    "exists",
			prepare: setValue,
			op: func(key string, _ int) error {
				_, err := rpcClient.Exists(key)
				return err
			},
		},
		{
			name: "exists-not",
			op: func(_ string, counter int) error {
				_, err := rpcClient.Exists(fmt.Sprintf("%s/exists-not-%d", perfKeyPrefix, counter%100))
				return err
			},
		},
		{
			name:    "del",
			prepare: setValue,
			op: func(key string, _ int) error {
				_, err := rpcClient.Del(key)
				return err
			},
		},
		{
			name:    "mixed",
			prepare: setValue,
			op: func(key string, counter int) error {
				var err error
				switch counter % 4 {
				case 0: // set
					err = rpcClient.Set(key, value)
				case 1: // get
					_, _, err = rpcClient.Get(key)
				case 2: // delete
					_, err = rpcClient.Del(key)
				case 3: // exists
					_, err = rpcClient.Exists(key)
				}
				return err
			},
		},
	}
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for respkv servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, bench := range perfBenchmarks() {
		if shouldSkip(bench.name) {
			printResult(bench.name, testing.BenchmarkResult{})
			continue
		}
		result := runBenchmark(bench)
		results[bench.name] = result
		printResult(bench.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runBenchmark runs bench in parallel and records the latency of every operation
func runBenchmark(bench perfBenchmark) testing.BenchmarkResult {
	timer := gometrics.GetOrRegisterTimer(bench.name, perfTimers)

	return testing.Benchmark(func(b *testing.B) {
		// prepare keys
		getKey, iter := getKeys(bench.name)

		if bench.prepare != nil {
			iter(func(k string) {
				if err := bench.prepare(k); err != nil {
					log.Printf("(%s) - error preparing key: %v\n", bench.name, err)
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := rpcClient.Del(k); err != nil {
					log.Printf("(%s) - error deleting key: %v\n", bench.name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := bench.op(getKey(counter), counter); err != nil {
					log.Printf("(%s) - error performing operation: %v\n", bench.name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// latencies returns the recorded latency percentiles of test
func latencies(test string) []time.Duration {
	timer, ok := perfTimers.Get(test).(gometrics.Timer)
	if !ok {
		return nil
	}
	snapshot := timer.Snapshot()
	if snapshot.Count() == 0 {
		return nil
	}

	ps := snapshot.Percentiles(latencyPercentiles)
	out := make([]time.Duration, len(ps))
	for i, p := range ps {
		out[i] = time.Duration(p)
	}
	return out
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
	if ps := latencies(test); ps != nil {
		fmt.Printf("\tp50=%s p90=%s p99=%s", ps[0], ps[1], ps[2])
	}
	fmt.Println()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P90", "P99",
		"Endpoint", "TimeoutSec", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		nsPerOp := math.Max(float64(result.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)

		percentiles := make([]string, len(latencyPercentiles))
		for i, p := range latencies(test) {
			percentiles[i] = p.String()
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
		}
		row = append(row, percentiles...)
		row = append(row,
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			string(config.Transport),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		)

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
