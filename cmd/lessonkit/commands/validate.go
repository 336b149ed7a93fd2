package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/internal/blocks"
	"github.com/livetemplate/lessonkit/plugin"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Validate lesson documents",
		Long: `Checks every lesson JSON file under the given files or directories
against the document shape and the block schemas. Exits with status 1 when
any file has errors; warnings are reported but do not fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, blocks.Registry(), args)
		},
	}
}

func runValidate(cmd *cobra.Command, reg *plugin.Registry, paths []string) error {
	out := cmd.OutOrStdout()
	files, err := lessonFiles(paths)
	if err != nil {
		return err
	}

	var validFiles, totalErrors, totalWarnings int
	var reports []*lessonkit.DocumentError
	for _, file := range files {
		name := displayPath(file)
		docErr := validateFile(reg, file, name)
		if docErr == nil {
			validFiles++
			okColor.Fprintf(out, "✓ %s\n", name)
			continue
		}
		reports = append(reports, docErr)
		totalErrors += len(docErr.Issues) - len(filterWarnings(docErr.Issues))
		totalWarnings += len(filterWarnings(docErr.Issues))
		if docErr.HasErrors() {
			errColor.Fprintf(out, "✗ %s\n", name)
		} else {
			validFiles++
			warnColor.Fprintf(out, "! %s\n", name)
		}
	}

	for _, r := range reports {
		fmt.Fprintln(out)
		c := warnColor
		if r.HasErrors() {
			c = errColor
		}
		c.Fprint(out, r.Format())
	}

	fmt.Fprint(out, "\n"+strings.Repeat("─", 60)+"\n")
	fmt.Fprintln(out, "Summary:")
	fmt.Fprintf(out, "  Total files: %d\n", len(files))
	fmt.Fprintf(out, "  Valid:       %d\n", validFiles)
	fmt.Fprintf(out, "  Errors:      %d\n", totalErrors)
	fmt.Fprintf(out, "  Warnings:    %d\n\n", totalWarnings)

	if totalErrors > 0 {
		errColor.Fprintf(out, "✗ Validation failed with %d error(s)\n", totalErrors)
		return fmt.Errorf("validation failed")
	}
	okColor.Fprintf(out, "✓ All checks passed!\n")
	return nil
}

// validateFile returns nil when file has no issues at all.
func validateFile(reg *plugin.Registry, file, name string) *lessonkit.DocumentError {
	data, err := os.ReadFile(file)
	if err != nil {
		return lessonkit.NewDocumentError(name, []lessonkit.Issue{{Level: lessonkit.LevelError, Message: err.Error()}})
	}
	res, err := lessonkit.ParseLessonDocument(reg, data)
	if err != nil {
		return lessonkit.NewDocumentError(name, []lessonkit.Issue{{Level: lessonkit.LevelError, Message: err.Error()}}).
			WithHint("the file must contain a single JSON object")
	}
	if len(res.Issues) == 0 {
		return nil
	}
	docErr := lessonkit.NewDocumentError(name, res.Issues)
	for _, i := range res.Issues {
		if strings.HasSuffix(i.Path, ".type") {
			docErr.WithRelated("Registered types: " + strings.Join(reg.Types(), ", "))
			break
		}
	}
	return docErr
}

func filterWarnings(issues []lessonkit.Issue) []lessonkit.Issue {
	var out []lessonkit.Issue
	for _, i := range issues {
		if i.Level == lessonkit.LevelWarn {
			out = append(out, i)
		}
	}
	return out
}
