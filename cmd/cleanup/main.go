// Command cleanup consumes the todos table stream and deletes the
// attachment blobs of removed todos.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jacentio/todos/attachment"
	"github.com/jacentio/todos/internal/config"
	"github.com/jacentio/todos/stream"
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

	s3Client := s3.NewFromConfig(awsCfg)
	issuer := attachment.New(s3.NewPresignClient(s3Client), s3Client, cfg.Attachment, logger.With("component", "attachment"))
	h := stream.NewHandler(issuer, logger.With("component", "stream"))

	lambda.Start(h.HandleAttachmentCleanup)
}
