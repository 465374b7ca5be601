package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/waclient/internal/logger"
	"github.com/waclient/migrations"
)

// Migrate применяет встроенные миграции по порядку имён файлов.
func Migrate(ctx context.Context, db Scope) error {
	names, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("run migration %s: %w", name, err)
		}
	}
	logger.Info("migrations applied")
	return nil
}
