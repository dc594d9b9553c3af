package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/notification"
)

// Command returns a cobra command that runs a single event through the
// notification pipeline
func Command(settings *conf.Settings) *cobra.Command {
	var (
		entityID    string
		message     string
		title       string
		category    string
		deviceClass string
		wait        time.Duration
		data        []string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Run one event through the notification pipeline",
		Long: `Send a single event through classification, policy and delivery.

Examples:
  # Let the classifier pick the category from the entity id
  hushd notify --entity=binary_sensor.basement_leak --message="Water leak detected"

  # Force a category and attach extra data
  hushd notify --message="Backup finished" --category=info --data="duration=42s"

  # Use registry metadata for classification
  hushd notify --entity=binary_sensor.hall --device-class=smoke --message="Smoke detected"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataMap := make(map[string]string)
			for _, kv := range data {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid data format: %s (expected key=value)", kv)
				}
				dataMap[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			}

			store := datastore.New(settings)
			if store == nil {
				return fmt.Errorf("no database backend enabled, enable sqlite or mysql output")
			}
			if err := store.Open(); err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed to close database: %v\n", err)
				}
			}()

			service, err := notification.NewService(settings, store, nil)
			if err != nil {
				return err
			}
			defer service.Stop()

			event := notification.Event{
				EntityID:    entityID,
				Message:     message,
				Title:       title,
				Category:    category,
				DeviceClass: deviceClass,
				Data:        dataMap,
				Source:      notification.SourceCLI,
			}

			record, decision, err := service.ProcessEvent(cmd.Context(), event)
			if err != nil {
				return fmt.Errorf("failed to process event: %w", err)
			}

			if record == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Event collapsed into an earlier record: reason=%s\n", decision.Reason)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Notification recorded: id=%s category=%s delivered=%v reason=%s\n",
				record.ID, record.Category, decision.Deliver, decision.Reason)

			// Push delivery runs in the background, give it a moment.
			if wait > 0 && decision.Deliver && settings.Push.Enabled {
				time.Sleep(wait)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entityID, "entity", "", "Entity id the event originates from")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Event message (required)")
	cmd.Flags().StringVar(&title, "title", "", "Notification title")
	cmd.Flags().StringVar(&category, "category", "", "Explicit category: safety|security|device|motion|info (skips classification)")
	cmd.Flags().StringVar(&deviceClass, "device-class", "", "Registry device class used for classification")
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "Time to wait for push delivery (0 to disable)")
	cmd.Flags().StringSliceVar(&data, "data", nil, "Extra data key-value pairs in format key=value")

	return cmd
}
