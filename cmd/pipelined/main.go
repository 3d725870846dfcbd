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
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"
)

var rootLogger = logrus.New().WithField("logger", "cli")

func main() {
	app := GetApp()
	if err := app.Run(os.Args); err != nil {
		rootLogger.Fatal(err)
	}
}

// GetApp builds the pipelined CLI: server, supervisor and worker
// subcommands.
func GetApp() *cli.App {
	app := cli.NewApp()
	app.Name = "pipelined"
	app.Usage = "distributed pipeline executor"
	app.Commands = []cli.Command{
		serverCommand,
		supervisorCommand,
		workerCommand,
	}
	return app
}
