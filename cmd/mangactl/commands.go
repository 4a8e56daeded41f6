package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-manga/pkg/simplemanga"
	repopg "github.com/tendant/simple-manga/pkg/simplemanga/repo/postgres"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".avif": true,
}

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mangas and their chapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			mangas := svc.Mangas()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), mangas)
			}
			printMangas(cmd.OutOrStdout(), mangas)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}

// NewAddCommand creates the add command
func NewAddCommand() *cobra.Command {
	var description, cover string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a manga",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			manga, err := svc.AddManga(commandContext(cmd), simplemanga.AddMangaRequest{
				Title:       args[0],
				Description: description,
				CoverURL:    cover,
			})
			if err != nil {
				return fmt.Errorf("add failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Manga ID: %s\n", manga.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "manga description")
	cmd.Flags().StringVar(&cover, "cover", "", "cover image URL")
	return cmd
}

// NewImportCommand creates the import command
func NewImportCommand() *cobra.Command {
	var number float64
	var language string

	cmd := &cobra.Command{
		Use:   "import <manga-id> <dir>",
		Short: "Import a directory of page images as one chapter version",
		Long: `Import every image file of a directory as one language version of a
chapter. Pages are ordered by natural file name order, so page2.png comes
before page10.png. Importing an existing chapter number and language
replaces that version.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mangaID, dir := args[0], args[1]

			files, err := readImageDir(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no images found in %s", dir)
			}

			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, ok := svc.GetManga(mangaID); !ok {
				return fmt.Errorf("manga %s: %w", mangaID, simplemanga.ErrMangaNotFound)
			}

			err = svc.AddChapterVersion(commandContext(cmd), simplemanga.AddChapterVersionRequest{
				MangaID:  mangaID,
				Number:   number,
				Language: language,
				Files:    files,
			})
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d pages as chapter %g (%s)\n", len(files), number, language)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&number, "number", "n", 1, "chapter number (fractions allowed, e.g. 10.5)")
	cmd.Flags().StringVarP(&language, "language", "l", "en", "language of the version")
	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <manga-id>",
		Short: "Delete a manga and its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.DeleteManga(commandContext(cmd), args[0]); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted manga %s\n", args[0])
			return nil
		},
	}
}

// NewDeleteChapterCommand creates the delete-chapter command
func NewDeleteChapterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-chapter <manga-id> <chapter-id>",
		Short: "Delete a chapter with every language version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.DeleteChapter(commandContext(cmd), args[0], args[1]); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted chapter %s\n", args[1])
			return nil
		},
	}
}

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check catalog references against the image store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.Verify(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("verify failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Blobs: %d\nReferences: %d\nOrphans: %d\nDangling: %d\n",
				report.Blobs, report.References, len(report.Orphans), len(report.Dangling))
			for _, d := range report.Dangling {
				fmt.Fprintf(out, "  dangling %s chapter %s [%s] page %d -> %s\n", d.MangaID, d.ChapterID, d.Language, d.PageNumber, d.ImageID)
			}
			if !report.Consistent() {
				return fmt.Errorf("catalog is inconsistent")
			}
			return nil
		},
	}
}

// NewGCCommand creates the gc command
func NewGCCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Delete images no catalog entry references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			deleted, err := svc.CollectOrphans(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("gc failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d orphaned images\n", len(deleted))
			return nil
		},
	}
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres catalog migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			pool, err := cfg.OpenCatalogPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := repopg.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the state of every catalog migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			pool, err := cfg.OpenCatalogPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			return repopg.MigrationStatus(ctx, pool)
		},
	})
	return cmd
}

// readImageDir reads the image files of dir, skipping subdirectories and
// other files.
func readImageDir(dir string) ([]simplemanga.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []simplemanga.File
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		files = append(files, simplemanga.File{Name: entry.Name(), Data: data})
	}
	return files, nil
}

func printMangas(w io.Writer, mangas []*simplemanga.Manga) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTITLE\tCHAPTERS")
	for _, m := range mangas {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", m.ID, m.Title, len(m.Chapters))
		for _, c := range m.Chapters {
			langs := make([]string, 0, len(c.Pages))
			for lang, pages := range c.Pages {
				langs = append(langs, fmt.Sprintf("%s:%d", lang, len(pages)))
			}
			slices.Sort(langs)
			fmt.Fprintf(tw, "  %s\tchapter %g\t%s\n", c.ID, c.Number, strings.Join(langs, " "))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
