package pipeline

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/elgendy/vsts-agent/internal/errors"
)

// DefaultPattern picks the pipeline file when --yaml is not given.
const DefaultPattern = "*.yml"

// Locate returns the pipeline file to use: yamlPath when set (relative to
// dir), otherwise the first *.yml in dir by name.
func Locate(yamlPath, dir string) (string, error) {
	if yamlPath != "" {
		p := yamlPath
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		info, err := os.Stat(p)
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrPipeline,
				"Pipeline file not found: "+yamlPath,
				"Check the path passed to --yaml")
		}
		if info.IsDir() {
			return "", errors.New(errors.ErrPipeline,
				yamlPath+" is a directory",
				"Pass the pipeline file itself to --yaml")
		}
		return p, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), DefaultPattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrPipeline,
			"Couldn't list pipeline files in "+dir, "")
	}
	if len(matches) == 0 {
		return "", errors.New(errors.ErrPipeline,
			"No .yml pipeline file found in "+dir,
			"Pass one with --yaml <file>")
	}
	sort.Strings(matches)
	return filepath.Join(dir, matches[0]), nil
}
