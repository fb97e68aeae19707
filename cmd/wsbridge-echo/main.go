// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Example Lambda entrypoint serving the echo application behind an API
// Gateway websocket API. Deployments needing scope correlation across
// concurrent execution environments set WSBRIDGE_POSTGRES_DSN to move the
// connection store out of process memory.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	log "github.com/sirupsen/logrus"

	"github.com/wsbridge/wsbridge/bridge/connstore"
	"github.com/wsbridge/wsbridge/bridge/echo"
	"github.com/wsbridge/wsbridge/bridge/gateway"
)

func main() {
	cfg, err := connstore.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load connection store configuration")
	}
	store, err := cfg.Open(context.Background())
	if err != nil {
		log.WithError(err).Fatal("Failed to open connection store")
	}

	lambda.Start(gateway.Handler(echo.New(), store))
}
