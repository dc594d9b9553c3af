// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "hushd")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "hushd.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", "Sunday")

	viper.SetDefault("notification.quiethours.enabled", false)
	viper.SetDefault("notification.quiethours.start", "22:00")
	viper.SetDefault("notification.quiethours.end", "07:00")

	viper.SetDefault("notification.behaviors.safety", "always_notify")
	viper.SetDefault("notification.behaviors.security", "notify_respect_quiet")
	viper.SetDefault("notification.behaviors.device", "notify_once_per_hour")
	viper.SetDefault("notification.behaviors.motion", "log_only")
	viper.SetDefault("notification.behaviors.info", "notify_with_dedup")

	viper.SetDefault("notification.overrides", map[string]string{})
	viper.SetDefault("notification.retentiondays", 7)
	viper.SetDefault("notification.dedupwindowminutes", 5)
	viper.SetDefault("notification.hourlywindowminutes", 60)

	viper.SetDefault("push.enabled", false)

	viper.SetDefault("ingest.mqtt.enabled", false)
	viper.SetDefault("ingest.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("ingest.mqtt.topic", "hushd/events")
	viper.SetDefault("ingest.mqtt.clientid", "hushd")
	viper.SetDefault("ingest.mqtt.username", "")
	viper.SetDefault("ingest.mqtt.password", "")

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")

	viper.SetDefault("webserver.log.enabled", false)
	viper.SetDefault("webserver.log.path", "api.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 1048576)
	viper.SetDefault("webserver.log.rotationday", "Sunday")

	viper.SetDefault("security.basicauth.enabled", false)
	viper.SetDefault("security.basicauth.username", "")
	viper.SetDefault("security.basicauth.password", "")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "hushd.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "hushd")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "hushd")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", 3306)
}
