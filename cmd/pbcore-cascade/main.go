// Command pbcore-cascade is the Lambda function attached to the archive
// tables' DynamoDB streams. It propagates asset deletions to instantiations.
//
// The configuration file is read from $PBCORE_CONFIG; without it the defaults
// apply and the AWS region comes from the Lambda environment.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/pbcore/internal/config"
	"github.com/jacentio/pbcore/internal/dynamo"
	"github.com/jacentio/pbcore/internal/logging"
	"github.com/jacentio/pbcore/store"
	"github.com/jacentio/pbcore/stream"
)

func main() {
	ctx := context.Background()
	cfg, err := loadConfig(os.Getenv("PBCORE_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	client, err := dynamo.NewClient(ctx, cfg.DynamoDB)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	handler, err := newHandler(cfg, client)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	lambda.Start(handler.HandleCascadeDelete)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.Logging.Format = "json"
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	cfg, _, _, err := config.Load(path)
	return cfg, err
}

func newHandler(cfg *config.Config, client store.Client) (*stream.Handler, error) {
	logger, err := logging.NewFromConfig(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	return stream.NewHandler(dynamo.NewStore(client, cfg.DynamoDB), logger), nil
}
