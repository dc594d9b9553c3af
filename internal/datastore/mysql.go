package datastore

import (
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/secrets"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements DataStore for MySQL.
type MySQLStore struct {
	DataStore
}

// Open initializes the MySQL database connection and migrates the schema.
// Username and password may reference environment variables with ${VAR}
// syntax so credentials can stay out of the config file.
func (store *MySQLStore) Open() error {
	cfg := &store.Settings.Output.MySQL

	username, err := secrets.ExpandString(cfg.Username)
	if err != nil {
		return mysqlCredentialError("username", err)
	}
	password, err := secrets.ExpandString(cfg.Password)
	if err != nil {
		return mysqlCredentialError("password", err)
	}

	// Build the DSN with mysql.Config so credentials with special
	// characters are escaped correctly.
	dsnCfg := mysql.Config{
		User:   username,
		Passwd: password,
		Net:    "tcp",
		Addr:   fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		DBName: cfg.Database,
		Params: map[string]string{
			"charset":   "utf8mb4",
			"parseTime": "True",
			"loc":       "Local",
		},
	}
	dsn := dsnCfg.FormatDSN()

	// Connection info for logs, never includes the password.
	connInfo := fmt.Sprintf("%s@tcp(%s:%s)/%s", username, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: createGormLogger(store.Settings.Debug, store.metrics),
	})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open MySQL database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityCritical).
			Context("operation", "open_mysql").
			Context("connection", connInfo).
			Build()
	}

	store.DB = db
	if err := performAutoMigration(db, store.Settings.Debug, "MySQL", connInfo); err != nil {
		return err
	}

	store.startMonitoring(db)
	return nil
}

func mysqlCredentialError(field string, err error) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryConfiguration).
		Priority(errors.PriorityCritical).
		Context("operation", "resolve_mysql_credentials").
		Context("field", field).
		Build()
}
