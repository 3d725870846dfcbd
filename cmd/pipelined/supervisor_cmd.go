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
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"

	"github.com/wercker/pipelined/logging"
	"github.com/wercker/pipelined/supervisor"
	"github.com/wercker/pipelined/util"
)

var supervisorCommand = cli.Command{
	Name:  "supervisor",
	Usage: "run the worker supervisor",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "socket", Value: "/tmp/pipelined.sock", Usage: "unix domain socket path"},
		cli.IntFlag{Name: "concurrency", Value: 4, Usage: "maximum simultaneously running workers"},
		cli.StringFlag{Name: "metrics-addr", Value: ":9090", Usage: "HTTP address for the prometheus metrics endpoint"},
	},
	Action: func(c *cli.Context) error {
		log := logging.New("supervisor")
		sup, err := supervisor.New(c.Int("concurrency"), log)
		if err != nil {
			return err
		}

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			rootLogger.Warn(http.ListenAndServe(c.String("metrics-addr"), mux))
		}()

		shutdown := util.NewShutdownMonkey()
		shutdown.Add(func() {
			rootLogger.Info("supervisor shutting down")
			sup.Close()
		})
		go shutdown.WaitForShutdown()

		rootLogger.Infof("supervisor listening on %s", c.String("socket"))
		return sup.Serve(c.String("socket"))
	},
}
