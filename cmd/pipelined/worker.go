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
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/wercker/pipelined/execstate"
	"github.com/wercker/pipelined/logging"
	"github.com/wercker/pipelined/proxy"
	"github.com/wercker/pipelined/runner"
)

// workerCommand implements the Worker CLI Contract: the command line
// the Supervisor re-invokes itself as for each queued run.
var workerCommand = cli.Command{
	Name:  "worker",
	Usage: "run a single pipeline to completion (invoked by the supervisor)",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "pipeline", Usage: "pipeline name to run"},
		cli.StringFlag{Name: "run-id", Usage: "run id assigned by the caller"},
		cli.StringFlag{Name: "variables", Value: "", Usage: "JSON object of variable overrides"},
		cli.StringFlag{Name: "environment", Value: "", Usage: "JSON object of environment overrides"},
		cli.StringFlag{Name: "pipelines", Value: "./pipelines", Usage: "pipeline document root directory"},
		cli.StringFlag{Name: "logs", Value: "./logs", Usage: "run log directory"},
		cli.StringFlag{Name: "docker-host", Value: "", Usage: "docker daemon address for container-platform runs"},
	},
	Action: func(c *cli.Context) error {
		pipelineName := c.String("pipeline")
		runID := c.String("run-id")
		if pipelineName == "" || runID == "" {
			return fmt.Errorf("worker: --pipeline and --run-id are required")
		}

		variables, err := parseJSONFlag(c.String("variables"))
		if err != nil {
			return fmt.Errorf("worker: --variables: %v", err)
		}
		environment, err := parseJSONFlag(c.String("environment"))
		if err != nil {
			return fmt.Errorf("worker: --environment: %v", err)
		}

		logPath := filepath.Join(c.String("logs"), runID)
		sink, err := logging.NewFileSink(logPath)
		if err != nil {
			return fmt.Errorf("worker: opening log file: %v", err)
		}
		defer sink.Close()

		log := logging.New(runID, sink.Write)

		r, err := runner.NewBuilder().
			RunID(runID).
			RunStartTime(time.Now().UTC().Format(time.RFC3339)).
			Config(&runner.Config{DockerHost: c.String("docker-host")}).
			Logger(log).
			Proxy(proxy.NewFileSystem(c.String("pipelines"))).
			Pipeline(pipelineName).
			ExecState(execstate.NewShared()).
			Environment(environment).
			Variables(variables).
			Build(context.Background())
		if err != nil {
			return fmt.Errorf("worker: building runner: %v", err)
		}

		return r.Run(context.Background())
	},
}

func parseJSONFlag(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}
