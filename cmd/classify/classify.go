package classify

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hush-home/hushd/internal/classify"
	"github.com/hush-home/hushd/internal/conf"
)

// Command returns a cobra command that classifies entity ids without
// touching the pipeline or the store
func Command(settings *conf.Settings) *cobra.Command {
	var (
		deviceClass string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "classify [entity_id...]",
		Short: "Classify entity ids without sending anything",
		Long: `Show which category each entity id would be assigned, together with the
signal that produced it and a confidence score. Configured overrides apply.

Examples:
  hushd classify binary_sensor.front_door sensor.kitchen_co2
  hushd classify --device-class=smoke binary_sensor.hall
  hushd classify --json light.porch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, entityID := range args {
				meta := &classify.Metadata{DeviceClass: deviceClass}
				result, err := classify.ClassifyDetailed(entityID, meta, settings.Notification.Overrides)
				if err != nil {
					return fmt.Errorf("failed to classify %s: %w", entityID, err)
				}

				if asJSON {
					out, err := json.Marshal(struct {
						EntityID string `json:"entity_id"`
						classify.Result
					}{EntityID: entityID, Result: result})
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(out))
					continue
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: category=%s source=%s confidence=%.2f\n",
					entityID, result.Category, result.Source, result.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&deviceClass, "device-class", "", "Registry device class to classify with")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON, one object per line")

	return cmd
}
