package serve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/daemon"
)

// Command creates the serve command that runs the hushd daemon.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification daemon",
		Long:  "Start the hushd daemon: MQTT event ingest, the REST API and delivery of classified notifications.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return daemon.Run(settings)
		},
	}

	// Set up flags specific to the 'serve' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the REST API server")
	cmd.Flags().BoolVar(&settings.Ingest.MQTT.Enabled, "mqtt", viper.GetBool("ingest.mqtt.enabled"), "Enable MQTT event ingest")
	cmd.Flags().StringVar(&settings.Ingest.MQTT.Broker, "broker", viper.GetString("ingest.mqtt.broker"), "MQTT broker to connect to (tcp://host:port)")
	cmd.Flags().StringVar(&settings.Ingest.MQTT.Topic, "topic", viper.GetString("ingest.mqtt.topic"), "MQTT topic to subscribe for incoming events")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
