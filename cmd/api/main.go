// Command api serves the todos HTTP API behind API Gateway.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jacentio/todos/attachment"
	"github.com/jacentio/todos/handler"
	"github.com/jacentio/todos/internal/auth"
	"github.com/jacentio/todos/internal/config"
	"github.com/jacentio/todos/service"
	"github.com/jacentio/todos/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("load aws config", "error", err)
		os.Exit(1)
	}

	items := store.New(dynamodb.NewFromConfig(awsCfg), cfg.Store, logger.With("component", "store"))
	s3Client := s3.NewFromConfig(awsCfg)
	issuer := attachment.New(s3.NewPresignClient(s3Client), s3Client, cfg.Attachment, logger.With("component", "attachment"))
	svc := service.New(items, issuer, logger.With("component", "service"))

	// The API Gateway authorizer verifies the token before the request arrives.
	h := handler.New(svc, auth.NewUnverified(), logger.With("component", "handler"))

	lambda.Start(h.Handle)
}
