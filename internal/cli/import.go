package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conorfennell/mamanxue/internal/deckimport"
)

var importCmd = &cobra.Command{
	Use:   "import <file-or-dir>...",
	Short: "Import JSON or markdown deck files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := deckFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .json or .md deck files found")
	}

	importer := deckimport.New(a.db, a.logger)
	var failed int
	for _, path := range files {
		res, err := importer.ImportFile(cmd.Context(), path, nil)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d cards\n", res.DeckID, res.Cards)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deck files failed to import", failed, len(files))
	}
	return nil
}

// deckFiles expands directories into the deck files they contain.
func deckFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && deckimport.IsDeckFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking directory %s: %w", arg, err)
		}
	}
	return files, nil
}
