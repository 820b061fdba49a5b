package database

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// GetDB returns the connection opened by SetupDatabase
func GetDB() *gorm.DB {
	return DB
}

// SetupDatabase opens the configured database. DB_DRIVER=sqlite opens a
// local file for development, anything else connects to mysql.
func SetupDatabase() (*gorm.DB, error) {
	var err error
	if env.GetEnv("DB_DRIVER", "mysql") == "sqlite" {
		path := env.GetEnv("DB_PATH", "productimages.db")
		DB, err = OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		if err := Migrate(DB, true); err != nil {
			return nil, err
		}
		log.Infof("[Database] Using sqlite database %s", path)
		return DB, nil
	}

	dsn := DSN(false)

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,   // data source name
			DefaultStringSize:         256,   // default size for string fields
			DisableDatetimePrecision:  true,  // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,  // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,  // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false, // auto configure based on currently MySQL version
		}), gormConfig())
		if err == nil {
			if env.IsDev() {
				if merr := Migrate(DB, false); merr != nil {
					log.Warnf("[Database] AutoMigrate failed: %v", merr)
				}
			}
			return DB, nil
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	return nil, fmt.Errorf("failed to connect to database: %w", err)
}

// DSN is the mysql data source of the DB_* environment. The migrate
// variant allows multi statement scripts instead of parsing times.
func DSN(forMigrate bool) string {
	params := "charset=utf8mb4&parseTime=True&loc=Local"
	if forMigrate {
		params = "multiStatements=true"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s",
		env.GetEnv("DB_USER", "productimages"),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "productimages"),
		params,
	)
}

// Describe names the configured database without credentials
func Describe() string {
	return fmt.Sprintf("%s@%s:%s/%s",
		env.GetEnv("DB_USER", "productimages"),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "productimages"),
	)
}

// OpenSQLite opens a sqlite database through the pure Go driver. Writes are
// funnelled through one connection.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// OpenMemory opens a private in-memory database named name and migrates it,
// including the catalog table.
func OpenMemory(name string) (*gorm.DB, error) {
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, true); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables owned by this service. The item catalog is
// external in production and only created for local databases.
func Migrate(db *gorm.DB, withCatalog bool) error {
	tables := []interface{}{
		&models.ProductImage{},
		&models.ImageProduct{},
	}
	if withCatalog {
		tables = append(tables, &models.Item{})
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: logger.New(stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}
