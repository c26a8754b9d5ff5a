package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docserver/docserver/internal/ingest"
)

func newUploadDocCmd() *cobra.Command {
	var libraryID, title, source, file string

	cmd := &cobra.Command{
		Use:   "upload-doc",
		Short: "Ingest a document's content directly, without fetching a URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if libraryID == "" || file == "" {
				return fmt.Errorf("--library-id and --file are required")
			}

			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			if source == "" {
				source = file
			}

			d, err := buildDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			doc, err := d.pipeline.Ingest(cmd.Context(), ingest.Request{
				LibraryID:  libraryID,
				Title:      title,
				Content:    string(content),
				SourceName: source,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ingested document %s (%d chunks)\n", doc.ID, doc.ChunkCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&libraryID, "library-id", "", "owning library id (required)")
	cmd.Flags().StringVar(&title, "title", "", "document title; defaults to --source")
	cmd.Flags().StringVar(&source, "source", "", "source label stored on each chunk; defaults to --file")
	cmd.Flags().StringVar(&file, "file", "", "path to the document content (required)")

	return cmd
}

func newFetchDocCmd() *cobra.Command {
	var libraryID, title, url string

	cmd := &cobra.Command{
		Use:   "fetch-doc",
		Short: "Fetch a URL, normalize, chunk, embed and store it under a library",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if libraryID == "" || url == "" {
				return fmt.Errorf("--library-id and --url are required")
			}

			d, err := buildDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			doc, err := d.pipeline.Ingest(cmd.Context(), ingest.Request{
				LibraryID: libraryID,
				Title:     title,
				URL:       url,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ingested document %s (%d chunks) from %s\n", doc.ID, doc.ChunkCount, url)
			return nil
		},
	}

	cmd.Flags().StringVar(&libraryID, "library-id", "", "owning library id (required)")
	cmd.Flags().StringVar(&title, "title", "", "document title; defaults to the fetched page title")
	cmd.Flags().StringVar(&url, "url", "", "URL to fetch (required)")

	return cmd
}
