package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/loykin/schoolsys/cmd/schoolsys/config"
	"github.com/loykin/schoolsys/internal/schema"
	"github.com/loykin/schoolsys/internal/util"
	"github.com/spf13/cobra"
)

var createDir string

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Scaffold a new changeset with the next numeric prefix, one file pair per dialect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := createChangeset(createDir, args[0])
		if err != nil {
			return err
		}
		for _, p := range paths {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createDir, "dir", filepath.Join("internal", "schema", schema.Root),
		"directory holding one sub-directory per dialect")
}

var prefixRegex = regexp.MustCompile(`^([0-9]+)_`)

// nextPrefix returns one more than the highest numeric prefix found in any
// dialect directory under root.
func nextPrefix(root string) (int, error) {
	highest := 0
	for _, d := range schema.Dialects {
		entries, err := os.ReadDir(filepath.Join(root, d))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, err
		}
		for _, e := range entries {
			m := prefixRegex.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if n > highest {
				highest = n
			}
		}
	}
	return highest + 1, nil
}

func createChangeset(root, name string) ([]string, error) {
	slug := util.Slugify(name)
	if slug == "" {
		return nil, &config.Error{Err: fmt.Errorf("changeset name %q has no usable characters", name)}
	}
	n, err := nextPrefix(root)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%d_%s", n, slug)

	var created []string
	for _, d := range schema.Dialects {
		dir := filepath.Join(root, d)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return created, err
		}
		files := map[string]string{
			id + ".up.sql":   fmt.Sprintf("-- %s (%s): forward change\n", id, d),
			id + ".down.sql": fmt.Sprintf("-- %s (%s): reverse of the forward change\n", id, d),
		}
		for _, fname := range []string{id + ".up.sql", id + ".down.sql"} {
			p := filepath.Join(dir, fname)
			f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) // #nosec G302 -- source files
			if err != nil {
				return created, err
			}
			_, werr := f.WriteString(files[fname])
			cerr := f.Close()
			if err := errors.Join(werr, cerr); err != nil {
				return created, err
			}
			created = append(created, p)
		}
	}
	return created, nil
}
