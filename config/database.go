package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB installs an already opened handle (tools and tests).
func SetDB(handle *gorm.DB) {
	db = handle
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// dialector builds the gorm dialector for the configured driver.
func dialector(s *Settings) (gorm.Dialector, error) {
	switch s.DBDriver {
	case "mysql":
		network := "tcp"
		address := fmt.Sprintf("%s:%s", s.DBHost, s.DBPort)
		// Cloud SQL: DB_HOST=/cloudsql/<CONNECTION_NAME> is a unix socket.
		if strings.HasPrefix(s.DBHost, "/cloudsql/") {
			network = "unix"
			address = s.DBHost
		}
		dsn := fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
			s.DBUser,
			s.DBPassword,
			network,
			address,
			s.DBName,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := s.DBDSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
				s.DBHost, s.DBPort, s.DBUser, s.DBPassword, s.DBName)
		}
		return postgres.Open(dsn), nil
	case "sqlite", "":
		dsn := s.DBDSN
		if dsn == "" {
			dsn = filepath.Join(s.DataDir, "data.db")
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", s.DBDriver)
	}
}

// ConnectDatabaseWithRetry connects and sets the global DB.
func ConnectDatabaseWithRetry() {
	s := GetSettings()
	dial, err := dialector(s)
	if err != nil {
		log.Fatalf("database config: %v", err)
	}

	var attempt int
	for {
		attempt++
		db, err = OpenDatabase(dial)
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				connMaxLife := time.Duration(s.DBConnMaxLifetimeSeconds) * time.Second
				connMaxIdle := time.Duration(s.DBConnMaxIdleTimeSeconds) * time.Second

				if s.DBMaxOpenConns > 0 {
					sqlDB.SetMaxOpenConns(s.DBMaxOpenConns)
				}
				if s.DBMaxIdleConns >= 0 {
					sqlDB.SetMaxIdleConns(s.DBMaxIdleConns)
				}
				if connMaxLife > 0 {
					sqlDB.SetConnMaxLifetime(connMaxLife)
				}
				if connMaxIdle > 0 {
					sqlDB.SetConnMaxIdleTime(connMaxIdle)
				}
			}
			log.Printf("connected to database (driver=%s attempt=%d)", s.DBDriver, attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// OpenDatabase opens a handle with the shared gorm config and plugins
// without touching the global.
func OpenDatabase(dial gorm.Dialector) (*gorm.DB, error) {
	handle, err := gorm.Open(dial, initConfig())
	if err != nil {
		return nil, err
	}
	if pluginErr := handle.Use(otelgorm.NewPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}
	return handle, nil
}

// OpenSQLite opens a SQLite database file, used by tests and local tools.
func OpenSQLite(path string) (*gorm.DB, error) {
	return OpenDatabase(sqlite.Open(path + "?_pragma=busy_timeout(5000)"))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         WriteGormLog(),
		NamingStrategy: initNamingStrategy(),
		TranslateError: true,
	}
}

func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
	return newLogger
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}

// WriteGormLog sends SQL logs to GORM_LOG when set.
func WriteGormLog() logger.Interface {
	logFile := os.Getenv("GORM_LOG")
	if logFile == "" {
		return initLog()
	}
	f, err := os.Create(logFile)
	if err != nil {
		return initLog()
	}
	newLogger := logger.New(log.New(io.MultiWriter(f), "\r\n", log.LstdFlags), logger.Config{
		Colorful:      true,
		LogLevel:      logger.Info,
		SlowThreshold: time.Second,
	})
	return newLogger
}
