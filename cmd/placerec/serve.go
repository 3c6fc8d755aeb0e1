// Copyright 2025 placerec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/master"
	"github.com/placerec/placerec/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and task workers.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		otel.SetErrorHandler(log.GetErrorHandler())
		s, eng, orchestrator := newEngine(conf)
		defer s.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, ctx := errgroup.WithContext(ctx)

		if noScheduler, _ := cmd.Flags().GetBool("no-scheduler"); !noScheduler {
			m := &master.Master{Orchestrator: orchestrator}
			g.Go(func() error {
				m.RunTasksLoop(ctx)
				return nil
			})
		}
		if jobs, _ := cmd.Flags().GetInt("jobs"); jobs > 0 {
			conf.Worker.NumJobs = jobs
		}
		cachePath, _ := cmd.Flags().GetString("cache-path")
		w := worker.NewWorker(conf, orchestrator.Queue, eng, orchestrator, worker.WorkerName(cachePath))
		g.Go(func() error {
			return w.Serve(ctx)
		})

		// metrics
		server := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", conf.Serve.MetricsHost, conf.Serve.MetricsPort),
			Handler: promhttp.Handler(),
		}
		g.Go(func() error {
			log.Logger().Info("start metrics server", zap.String("address", server.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			log.Logger().Fatal("failed to serve", zap.Error(err))
		}
		log.Logger().Info("stop placerec successfully", zap.Int64("n_executed", w.Executed()))
	},
}

func init() {
	serveCommand.Flags().String("cache-path", "worker_cache.data", "path of worker state file")
	serveCommand.Flags().Int("jobs", 0, "number of task consumers (overrides worker.num_jobs)")
	serveCommand.Flags().Bool("no-scheduler", false, "only consume tasks without scheduling rebuilds")
}
