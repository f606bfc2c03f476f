package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"

	"markerlocator"
	"markerlocator/mailbox"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

// envOr reads key from the environment, falling back to def.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func realMain() error {
	ctx := context.Background()
	logger := logging.NewLogger("cli")

	// Machine credentials (VIAM_API_KEY, VIAM_API_KEY_ID, VIAM_MACHINE_FQDN) usually live in .env.
	if err := godotenv.Load(); err != nil {
		logger.Debugf("No .env loaded: %v", err)
	}

	deps := resource.Dependencies{}
	// the camera is resolved on the remote machine

	cfg := markerlocator.Config{
		CameraName:    envOr("MARKER_CAMERA", "camera"),
		SourceName:    os.Getenv("MARKER_SOURCE"),
		MailboxDir:    envOr("MARKER_MAILBOX_DIR", "."),
		Dictionary:    os.Getenv("MARKER_DICTIONARY"),
		UpdateRateHz:  10.0,
		EnableOnStart: false,
	}
	if addr := os.Getenv("MARKER_REDIS_ADDR"); addr != "" {
		cfg.Redis = &mailbox.RedisConfig{Addr: addr}
	}
	if raw := os.Getenv("MARKER_TARGET_ID"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("MARKER_TARGET_ID: %w", err)
		}
		cfg.TargetID = &id
	}

	thing, err := markerlocator.NewExtractorService(ctx, deps, genericservice.Named("extractor"), &cfg, logger)
	if err != nil {
		return err
	}
	defer thing.Close(ctx)

	resp, err := thing.DoCommand(ctx, map[string]interface{}{"command": "process-frame"})
	if err != nil {
		return err
	}
	logger.Infof("process-frame: %v", resp)
	return nil
}
