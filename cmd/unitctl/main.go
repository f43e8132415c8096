// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// unitctl is a command-line tool for controlling a running unitd
// instance over its JSON-RPC control socket, grounded on
// cmd/trellis-ctl/main.go's flag-filtering/subcommand-switch shape,
// adapted from trellis's one-shot REST pkg/client to a single
// long-lived pkg/rpctypes.Conn since the control surface is JSON-RPC.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KillingSpark/unitd/pkg/rpctypes"
)

var (
	version    = "0.1"
	socketPath = "/run/unitd/notifications/control.socket"
	tcpAddr    = ""
	jsonOutput = false
)

func main() {
	if env := os.Getenv("UNITD_SOCKET"); env != "" {
		socketPath = env
	}
	if env := os.Getenv("UNITD_API"); env != "" {
		tcpAddr = strings.TrimPrefix(env, "tcp://")
	}

	var filtered []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filtered = append(filtered, arg)
		}
	}

	if len(filtered) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := filtered[0]
	args := filtered[1:]

	var err error
	switch cmd {
	case "status":
		err = cmdUnary("status", args)
	case "list-units":
		err = cmdUnary("list-units", args)
	case "restart":
		err = cmdUnary("restart", args)
	case "stop":
		err = cmdUnary("stop", args)
	case "shutdown":
		err = cmdShutdown(args)
	case "enable":
		err = cmdEnable(args)
	case "reload":
		err = cmdUnary("reload", nil)
	case "version", "-v", "--version":
		fmt.Printf("unitctl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`unitctl - control a running unitd instance

Usage:
  unitctl [-json] <command> [arguments]

Environment:
  UNITD_SOCKET   Path to the control unix socket (default: /run/unitd/notifications/control.socket)
  UNITD_API      TCP control address, used instead of the socket when set

Commands:
  status [unit]          Show status of all units or a single unit
  list-units [kind]      List unit names, optionally filtered by kind (service/socket/target)
  restart <service>      Restart a service
  stop <service>         Stop a service
  shutdown               Shut down the whole engine
  enable <unit>...       Load and wire in one or more new unit files
  reload                 Rescan unit directories for new unit files`)
}

func dial() (*rpctypes.Conn, error) {
	if tcpAddr != "" {
		return rpctypes.DialTCP(tcpAddr, 5*time.Second)
	}
	return rpctypes.DialUnix(socketPath, 5*time.Second)
}

func call(method string, params interface{}) (*rpctypes.Response, error) {
	conn, err := dial()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	resp, err := conn.Call(method, params)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
	}
	return resp, nil
}

func printResult(result interface{}) error {
	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	switch v := result.(type) {
	case []interface{}:
		for _, item := range v {
			printPlain(item)
		}
	default:
		printPlain(v)
	}
	return nil
}

func printPlain(v interface{}) {
	switch val := v.(type) {
	case string:
		fmt.Println(val)
	case map[string]interface{}:
		name, _ := val["name"].(string)
		state, _ := val["status"].(string)
		if name != "" || state != "" {
			fmt.Printf("%s: %s\n", name, state)
			return
		}
		data, _ := json.Marshal(val)
		fmt.Println(string(data))
	default:
		data, _ := json.Marshal(val)
		fmt.Println(string(data))
	}
}

// cmdUnary handles every method whose params are either absent or a
// single unit/kind name string.
func cmdUnary(method string, args []string) error {
	var params interface{}
	if len(args) > 0 {
		params = args[0]
	}
	resp, err := call(method, params)
	if err != nil {
		return err
	}
	return printResult(resp.Result)
}

func cmdShutdown(args []string) error {
	resp, err := call("shutdown", nil)
	if err != nil {
		return err
	}
	return printResult(resp.Result)
}

func cmdEnable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("enable requires at least one unit name")
	}
	var params interface{}
	if len(args) == 1 {
		params = args[0]
	} else {
		params = args
	}
	resp, err := call("enable", params)
	if err != nil {
		return err
	}
	return printResult(resp.Result)
}
