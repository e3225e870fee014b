package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/config"
	"github.com/garyjia/leave-approval/internal/container"
	"github.com/garyjia/leave-approval/internal/domain/entity"
	"github.com/garyjia/leave-approval/internal/email"
	"github.com/garyjia/leave-approval/pkg/utils"
)

// Standalone check of the configured notification channel.
// Without --retry it renders one sample message and sends it; with --retry
// it starts the container and re-sends failed notifications from the log.

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	to := flag.String("to", "", "recipient address (required unless --retry)")
	kind := flag.String("kind", string(entity.KindInitialRequest), "notification kind to render")
	retry := flag.Bool("retry", false, "retry failed notifications instead of sending a sample")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	fmt.Println("=== Leave Approval Notification Test ===")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewDevelopmentLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	containerCfg := cfg.ToContainerConfig()
	fmt.Printf("Channel: %s\n", containerCfg.Notification.Channel)

	if *retry {
		if err := retryFailed(ctx, containerCfg, logger); err != nil {
			log.Fatalf("Retry failed: %v", err)
		}
		return
	}

	if *to == "" {
		fmt.Fprintln(os.Stderr, "--to is required")
		flag.Usage()
		os.Exit(2)
	}
	k := entity.NotificationKind(*kind)
	if !k.IsValid() {
		log.Fatalf("Unknown notification kind %q", *kind)
	}

	if err := sendSample(ctx, containerCfg, k, *to, logger); err != nil {
		log.Fatalf("Send failed: %v", err)
	}
}

func sendSample(ctx context.Context, cfg *container.Config, kind entity.NotificationKind, to string, logger *zap.Logger) error {
	sender, err := container.ProvideSender(cfg, logger)
	if err != nil {
		return err
	}

	today := entity.DateOf(time.Now())
	intent := entity.NotificationIntent{
		RequestID:      "test-notification",
		Kind:           kind,
		RecipientEmail: to,
		Payload: entity.NotificationPayload{
			Kind:           kind,
			RecipientEmail: to,
			EmployeeName:   "Test Employee",
			StartDate:      today,
			EndDate:        entity.DateOf(today.Time().AddDate(0, 0, 2)),
			Reason:         "Notification channel test",
			Stage:          entity.StageManager,
			Status:         entity.StatusPending,
		},
	}
	switch kind {
	case entity.KindApprovalForwarded:
		intent.Payload.Stage = entity.StageDirector
	case entity.KindFinalApproved:
		intent.Payload.Stage, intent.Payload.Status, intent.Payload.Reason = entity.StageCompleted, entity.StatusApproved, ""
	case entity.KindFinalRejected:
		intent.Payload.Stage, intent.Payload.Status, intent.Payload.Reason = entity.StageRejected, entity.StatusRejected, ""
	}

	fmt.Println("\n[Step 1] Rendering message...")
	msg, err := email.NewRenderer().Render(intent)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Subject: %s\n", msg.Subject)

	fmt.Printf("\n[Step 2] Sending to %s via %s...\n", to, sender.Channel())
	result, err := sender.Deliver(ctx, msg)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Sent, message id: %s\n", result.MessageID)
	return nil
}

func retryFailed(ctx context.Context, cfg *container.Config, logger *zap.Logger) error {
	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	fmt.Println("\n[Retry] Re-sending failed notifications...")
	delivered, err := c.Services().Notification.RetryFailed(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Delivered %d notification(s)\n", delivered)
	return nil
}
