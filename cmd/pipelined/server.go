//   Copyright 2016 Wercker Holding BV
//
//   Licensed under the Apache License, Version 2.0 (the "License");
//   you may not use this file except in compliance with the License.
//   You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
//   Unless required by applicable law or agreed to in writing, software
//   distributed under the License is distributed on an "AS IS" BASIS,
//   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//   See the License for the specific language governing permissions and
//   limitations under the License.

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"

	"github.com/wercker/pipelined/config"
	"github.com/wercker/pipelined/execsocket"
	"github.com/wercker/pipelined/proxy"
	"github.com/wercker/pipelined/store"
	"github.com/wercker/pipelined/util"
)

var serverCommand = cli.Command{
	Name:  "server",
	Usage: "run the exec socket HTTP+WebSocket listener",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address"},
		cli.StringFlag{Name: "pipelines", Value: "./pipelines", Usage: "pipeline document root directory"},
		cli.StringFlag{Name: "logs", Value: "./logs", Usage: "run log directory"},
		cli.StringFlag{Name: "docker-host", Value: "", Usage: "docker daemon address for container-platform runs"},
	},
	Action: func(c *cli.Context) error {
		cfg := &config.Config{
			Addr:         c.String("addr"),
			PipelinesDir: c.String("pipelines"),
			LogsDir:      c.String("logs"),
			DockerHost:   c.String("docker-host"),
		}

		handler := execsocket.NewHandler(
			execsocket.NewPool(),
			store.NewInMemory(),
			proxy.NewFileSystem(cfg.PipelinesDir),
			cfg,
		)

		mux := http.NewServeMux()
		mux.Handle("/ws-exec/", handler)
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{Addr: cfg.Addr, Handler: mux}

		shutdown := util.NewShutdownMonkey()
		shutdown.Add(func() {
			rootLogger.Info("server shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		})
		go shutdown.WaitForShutdown()

		rootLogger.Infof("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}
