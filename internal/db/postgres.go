package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// Service owns the database handle. Postgres is the production driver;
// sqlite exists for local runs against a file or :memory:.
type Service struct {
	DB  *gorm.DB
	log *logger.Logger
}

func NewService(driver, dsn string, log *logger.Logger) (*Service, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("Unsupported database driver: %s", driver)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to database: %w", err)
	}
	svc := &Service{DB: gdb, log: log.With("service", "DBService")}
	if driver != "sqlite" {
		if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
			return nil, fmt.Errorf("Failed to ensure uuid-ossp extension: %w", err)
		}
	}
	return svc, nil
}

// AutoMigrateAll creates or updates every table the assembly path
// touches.
func (s *Service) AutoMigrateAll() error {
	err := s.DB.AutoMigrate(
		&types.Project{},
		&types.Session{},
		&types.Stage{},
		&types.StageOverlay{},
		&types.RecipeStep{},
		&types.Contribution{},
		&types.Feedback{},
		&types.PromptTemplate{},
		&types.DocumentTemplate{},
		&types.ModelProvider{},
		&types.ProjectResource{},
	)
	if err != nil {
		return fmt.Errorf("Failed to run migrations: %w", err)
	}
	s.log.Info("Database migrations complete")
	return nil
}

func (s *Service) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
