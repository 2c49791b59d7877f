package config

import (
	"context"
	"testing"

	fsstorage "github.com/tendant/simple-nft/pkg/simplenft/storage/fs"
	memorystorage "github.com/tendant/simple-nft/pkg/simplenft/storage/memory"
)

func TestBuildInMemory(t *testing.T) {
	cfg, err := Load(WithEnvironment("testing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	app, err := cfg.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.Close()

	if app.Cache == nil || app.Esdt == nil || app.Metadata == nil || app.Media == nil || app.Thumbnails == nil {
		t.Fatal("expected every service to be built")
	}
	if app.Processor == nil || app.Consumer == nil || app.Repo == nil {
		t.Fatal("expected processor, consumer and repository to be built")
	}
	if _, ok := app.Blobs.(*memorystorage.Backend); !ok {
		t.Errorf("expected memory blob store, got %T", app.Blobs)
	}
	if app.Consumer.MaxRetries() != 3 {
		t.Errorf("expected 3 retries, got %d", app.Consumer.MaxRetries())
	}
}

func TestBuildFilesystemStorage(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(WithStorage("file://" + dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	app, err := cfg.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.Close()

	if _, ok := app.Blobs.(*fsstorage.Backend); !ok {
		t.Errorf("expected filesystem blob store, got %T", app.Blobs)
	}
}

func TestS3ConfigFromURL(t *testing.T) {
	cfg := defaults()
	cfg.StorageURL = "s3://thumbnails?endpoint=http://localhost:9000&path_style=true"
	cfg.S3.Region = "eu-west-1"
	cfg.S3.AccessKeyID = "minio"
	cfg.S3.SecretAccessKey = "minio123"

	s3Config, err := cfg.s3Config()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s3Config.Bucket != "thumbnails" {
		t.Errorf("expected bucket thumbnails, got %q", s3Config.Bucket)
	}
	if s3Config.Region != "eu-west-1" {
		t.Errorf("expected region from AWS_REGION, got %q", s3Config.Region)
	}
	if s3Config.Endpoint != "http://localhost:9000" || !s3Config.UsePathStyle {
		t.Errorf("unexpected endpoint config %+v", s3Config)
	}
	if s3Config.AccessKeyID != "minio" {
		t.Errorf("expected credentials to be carried, got %q", s3Config.AccessKeyID)
	}

	cfg.StorageURL = "s3://thumbnails?region=us-east-1&path_style=maybe"
	if _, err := cfg.s3Config(); err == nil {
		t.Error("expected error for invalid path_style")
	}
}

func TestAppCloseRunsClosersInReverse(t *testing.T) {
	var order []int
	app := &App{}
	app.closers = append(app.closers,
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return nil },
	)

	if err := app.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("unexpected close order %v", order)
	}
}
