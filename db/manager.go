package db

import (
	"context"
	"fmt"
	"log/slog"

	"creaverse/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var ORM *gorm.DB

var gormConfig = &gorm.Config{
	NamingStrategy: schema.NamingStrategy{
		SingularTable: true,
		NoLowerCase:   false,
	},
	Logger:         logger.Default.LogMode(logger.Warn),
	TranslateError: true,
}

func dsnFromConfig(dbConf config.DBConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Password, dbConf.DBName,
	)
}

// ConnectDB opens the master database (postgres or sqlite), registers read
// replicas and runs migrations. The handle is stored in ORM.
func ConnectDB() (err error) {
	if ORM != nil {
		slog.Warn("ORM is already initialized")
		return nil
	}

	var conf = config.AppConfig
	if conf == nil {
		return fmt.Errorf("AppConfig is not loaded")
	}

	var db *gorm.DB
	switch conf.Databases.Driver {
	case "postgres":
		if conf.Databases.Master.Host == "" {
			return fmt.Errorf("master database configuration is missing")
		}
		db, err = gorm.Open(postgres.Open(dsnFromConfig(conf.Databases.Master)), gormConfig)
		if err != nil {
			return err
		}

		replicas := make([]gorm.Dialector, 0, len(conf.Databases.Replicas))
		for _, r := range conf.Databases.Replicas {
			replicas = append(replicas, postgres.Open(dsnFromConfig(r)))
		}
		if len(replicas) > 0 {
			err = db.Use(dbresolver.Register(dbresolver.Config{
				Replicas: replicas,
				Policy:   dbresolver.RandomPolicy{},
			}))
			if err != nil {
				return
			}
			slog.Info("read replicas registered", "count", len(replicas))
		}
	case "sqlite":
		db, err = OpenSQLite(conf.Databases.Master.Path)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported database driver %q", conf.Databases.Driver)
	}

	if err = Migrate(db); err != nil {
		return err
	}

	ORM = db
	return nil
}

// OpenSQLite opens a sqlite database limited to one connection, so ":memory:"
// databases are shared by every query of the process.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// GetReadOnlyDB возвращает подключение для чтения (слейвы)
func GetReadOnlyDB(ctx context.Context) *gorm.DB {
	return ORM.WithContext(ctx).Clauses(dbresolver.Read)
}

// GetWriteDB возвращает подключение для записи (мастер)
func GetWriteDB(ctx context.Context) *gorm.DB {
	return ORM.WithContext(ctx).Clauses(dbresolver.Write)
}
