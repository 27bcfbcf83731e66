package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ligustah/blobstream/internal/config"
	"github.com/ligustah/blobstream/internal/downloader"
	"github.com/ligustah/blobstream/internal/progress"
)

func newStatCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var f sourceFlags
	var raw bool

	cmd := &cobra.Command{
		Use:   "stat",
		Short: "Print the size of an object without downloading it",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(g, config.Config{
				Source:      f.source,
				Object:      f.object,
				PrefixMatch: f.prefixMatch,
			})
			if err != nil {
				return err
			}
			log := newLogger(cfg, stderr)

			src, key, closeSource, err := openSource(ctx, cfg, &f)
			if err != nil {
				return err
			}
			defer closeSource()

			info, err := downloader.Stat(ctx, src, key)
			if err != nil {
				return err
			}
			log.Debug("stat", "key", info.Key, "size", info.Size)

			if raw {
				fmt.Fprintln(stdout, info.Size)
				return nil
			}
			chunks := (info.Size + cfg.ChunkSize - 1) / cfg.ChunkSize
			fmt.Fprintf(stdout, "Key:    %s\n", info.Key)
			fmt.Fprintf(stdout, "Size:   %d (%s)\n", info.Size, progress.FormatBytes(info.Size))
			fmt.Fprintf(stdout, "Chunks: %d of %s\n", chunks, progress.FormatBytes(cfg.ChunkSize))
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&raw, "bytes", false, "print only the size in bytes")

	return cmd
}
