package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"askdocs/internal/helper"
	"askdocs/internal/models"
	"askdocs/internal/parser"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Extract, chunk and index documents",
		Long:  "Ingest files, or every supported file below a directory, into the index.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args, format)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no supported documents found")
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				outcomes := a.service.IngestAll(ctx, docs)
				out := cmd.OutOrStdout()
				failed := 0
				if opts.jsonOutput {
					type row struct {
						models.IngestResult
						Kind  string `json:"error_kind,omitempty"`
						Error string `json:"error,omitempty"`
					}
					rows := make([]row, len(outcomes))
					for i, o := range outcomes {
						rows[i] = row{IngestResult: o.Result}
						if o.Err != nil {
							rows[i].Kind = models.KindOf(o.Err)
							rows[i].Error = o.Err.Error()
							failed++
						}
					}
					helper.PrettyPrint(out, rows)
				} else {
					heading.Fprintln(out, "Ingested:")
					for _, o := range outcomes {
						if o.Err != nil {
							failed++
							fmt.Fprintf(out, "  %s %s (%s): %v\n", failure("x"), o.Result.Name, models.KindOf(o.Err), o.Err)
							continue
						}
						fmt.Fprintf(out, "  %s %s (%s) %d chunks", success("ok"), o.Result.Name, o.Result.SourceID, o.Result.AcceptedChunkCount)
						if o.Result.FailedChunkCount > 0 {
							fmt.Fprintf(out, ", %s", failure(fmt.Sprintf("%d failed", o.Result.FailedChunkCount)))
						}
						fmt.Fprintln(out)
					}
				}
				if failed == len(outcomes) {
					return fmt.Errorf("all %d documents failed", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "force the document format instead of detecting it")
	return cmd
}

// readDocuments loads every file named in paths. Directories are walked and
// only files with a supported extension are kept.
func readDocuments(paths []string, format string) ([]models.Document, error) {
	var docs []models.Document
	add := func(path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, models.Document{Name: filepath.Base(path), Format: format, Content: data})
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !parser.IsSupported(d.Name()) {
				log.Debug().Str("file", path).Msg("Skipping unsupported file")
				return nil
			}
			return add(path)
		})
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}
