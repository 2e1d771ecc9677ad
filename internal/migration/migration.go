package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/rfidtrack/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/rfidtrack/internal/catalog/domain"
	changelogdomain "github.com/smallbiznis/rfidtrack/internal/changelog/domain"
	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// Models lists every table the service owns, for AutoMigrate on sqlite.
func Models() []interface{} {
	return []interface{}{
		&tagdomain.Tag{},
		&changelogdomain.Entry{},
		&auditdomain.Entry{},
		&catalogdomain.BOMItem{},
	}
}

// Up brings the schema to the latest version. SQLite has no versioned
// migrations and uses AutoMigrate instead.
func Up(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if dbType == "sqlite" {
		return conn.AutoMigrate(Models()...)
	}

	migrator, err := newMigrator(conn, dbType)
	if err != nil {
		return err
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Down rolls back the given number of versions.
func Down(conn *gorm.DB, dbType string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	if dbType == "sqlite" {
		return errors.New("sqlite schema is managed by AutoMigrate and cannot be rolled back")
	}

	migrator, err := newMigrator(conn, dbType)
	if err != nil {
		return err
	}
	if err := migrator.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

// Version reports the applied version. ok is false before the first
// migration ran.
func Version(conn *gorm.DB, dbType string) (version uint, dirty bool, ok bool, err error) {
	if dbType == "sqlite" {
		return 0, false, false, nil
	}

	migrator, err := newMigrator(conn, dbType)
	if err != nil {
		return 0, false, false, err
	}
	version, dirty, err = migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	return version, dirty, true, nil
}

func newMigrator(conn *gorm.DB, dbType string) (*migrate.Migrate, error) {
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}

	driver, err := driverFor(sqlDB, dbType)
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	src, err := sourceFor(dbType)
	if err != nil {
		return nil, err
	}

	migrator, err := migrate.NewWithInstance("iofs", src, dbType, driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return migrator, nil
}

func sourceFor(dbType string) (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir+"/"+dbType)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

func driverFor(db *sql.DB, dbType string) (database.Driver, error) {
	switch dbType {
	case "postgres":
		return postgres.WithInstance(db, &postgres.Config{})
	case "mysql":
		return mysql.WithInstance(db, &mysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported %s type", dbType)
	}
}
