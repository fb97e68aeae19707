// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/wsbridge/wsbridge/bridge/connstore"
	"github.com/wsbridge/wsbridge/bridge/echo"
	"github.com/wsbridge/wsbridge/bridge/emulator"
	"github.com/wsbridge/wsbridge/bridge/logging"
)

type options struct {
	Addr          string `long:"addr" default:"0.0.0.0:8080" description:"listen address"`
	LogLevel      string `long:"log-level" default:"info" description:"log level"`
	InvokeTimeout int    `long:"invoke-timeout" default:"29" description:"per-invocation deadline in seconds"`
}

func main() {
	opts := getCLIArgs()
	logging.SetLevel(opts.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeCfg, err := connstore.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load connection store configuration")
	}
	store, err := storeCfg.Open(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to open connection store")
	}

	server := emulator.New(echo.New(), store,
		emulator.WithInvokeTimeout(time.Duration(opts.InvokeTimeout)*time.Second))

	if err := server.ListenAndServe(ctx, opts.Addr); err != nil {
		log.WithError(err).Fatal("Emulator exited")
	}
}

func getCLIArgs() options {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(os.Args); err != nil {
		log.WithError(err).Fatal("Failed to parse command line arguments:", os.Args)
	}
	return opts
}
