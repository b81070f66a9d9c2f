package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/niclabs/ecc-bench/tools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	benchCmd.Flags().StringP("file", "f", "", "Full path to the benchmark input (default: embedded message)")
	benchCmd.Flags().StringSliceP("workloads", "w", nil, "Workloads to run (default: all)")
	benchCmd.Flags().StringP("output", "o", "", "Output for the YAML report (default: stdout)")
	benchCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on while running, e.g. :9090")
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Runs the signing and verification workloads and prints a report",
	RunE:  bench,
}

func bench(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	conf, err := newEngineConfig()
	if err != nil {
		return err
	}
	message, err := readInput(viper.GetString("file"))
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	conf.Metrics = tools.NewMetrics(registry)
	if addr := viper.GetString("metrics-addr"); len(addr) > 0 {
		server := &http.Server{
			Addr:    addr,
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Log.Printf("metrics server stopped: %s", err)
			}
		}()
		defer server.Close()
		Log.Printf("serving metrics on %s/metrics", addr)
	}

	engine, err := tools.NewEngine(conf, Log)
	if err != nil {
		return err
	}
	defer engine.Close()
	report, err := tools.RunWorkloads(engine, message, viper.GetStringSlice("workloads"))
	if err != nil {
		return err
	}

	out := os.Stdout
	if path := viper.GetString("output"); len(path) > 0 {
		out, err = os.Create(path)
		if err != nil {
			return fmt.Errorf("couldn't create report file in path %s: %s", path, err)
		}
		defer out.Close()
	}
	if err := report.WriteYAML(out); err != nil {
		return err
	}
	if report.Failed() {
		return fmt.Errorf("some workloads failed, see report %s", report.ID)
	}
	return nil
}
