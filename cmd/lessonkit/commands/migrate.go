package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/internal/blocks"
	"github.com/livetemplate/lessonkit/plugin"
)

func newMigrateCommand() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "migrate [paths...]",
		Short: "Upgrade blocks stored at older versions",
		Long: `Finds blocks whose stored version is older than their plugin's current
version and rewrites their data with the plugin's migrator. Without --write
the command only reports what would change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, blocks.Registry(), args, write)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write migrated documents back to disk")
	return cmd
}

func runMigrate(cmd *cobra.Command, reg *plugin.Registry, paths []string, write bool) error {
	out := cmd.OutOrStdout()
	files, err := lessonFiles(paths)
	if err != nil {
		return err
	}

	var migrated, failed int
	for _, file := range files {
		name := displayPath(file)
		n, issues, err := migrateFile(reg, file, write)
		if err != nil {
			failed++
			errColor.Fprintf(out, "✗ %s: %v\n", name, err)
			continue
		}
		for _, i := range issues {
			failed++
			errColor.Fprintf(out, "✗ %s: %s\n", name, i)
		}
		if n == 0 {
			continue
		}
		migrated += n
		if write {
			okColor.Fprintf(out, "✓ %s: migrated %d block(s)\n", name, n)
		} else {
			warnColor.Fprintf(out, "! %s: %d block(s) need migration\n", name, n)
		}
	}

	switch {
	case migrated == 0 && failed == 0:
		okColor.Fprintln(out, "✓ All blocks are current")
	case !write && migrated > 0:
		infoColor.Fprintln(out, "Run with --write to apply")
	}
	if failed > 0 {
		return fmt.Errorf("%d block(s) could not be migrated", failed)
	}
	return nil
}

// migrateFile migrates the document in file and, when write is set and
// anything changed, rewrites it in place.
func migrateFile(reg *plugin.Registry, file string, write bool) (int, []lessonkit.Issue, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, nil, err
	}
	var doc lessonkit.LessonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, nil, fmt.Errorf("failed to parse lesson JSON: %w", err)
	}

	sections, migrations, issues := lessonkit.MigrateSections(reg, doc.Sections)
	if len(migrations) == 0 || !write {
		return len(migrations), issues, nil
	}

	doc.Sections = sections
	updated, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, issues, err
	}
	info, err := os.Stat(file)
	if err != nil {
		return 0, issues, err
	}
	if err := os.WriteFile(file, append(updated, '\n'), info.Mode().Perm()); err != nil {
		return 0, issues, fmt.Errorf("failed to write %s: %w", file, err)
	}
	return len(migrations), issues, nil
}
