package expr

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// maxScanBytes bounds the shallow field scan so a pathological file cannot
// stall classification.
const maxScanBytes = 1 << 20

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Strings(),
		ext.Lists(),

		// `pathBase` returns the last element of the path.
		// Example: files.exists(f, pathBase(f) in ["Chart.yaml", "Chart.yml"]).
		cel.Function("pathBase",
			cel.Overload("path_base", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathBase: invalid string value")
					}

					return types.String(filepath.Base(pathValue))
				}),
			),
		),

		// `pathDir` returns all but the last element of the path.
		cel.Function("pathDir",
			cel.Overload("path_dir", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathDir: invalid string value")
					}

					return types.String(filepath.Dir(pathValue))
				}),
			),
		),

		// `pathExt` returns the file extension of the path.
		// Example: files.exists(f, pathExt(f) in [".yaml", ".yml"]).
		cel.Function("pathExt",
			cel.Overload("path_ext", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathExt: invalid string value")
					}

					return types.String(filepath.Ext(pathValue))
				}),
			),
		),

		// `hasRootField` reports whether a file declares a top-level YAML
		// field with the given name, using an anchored line match rather
		// than a YAML parse.
		// Example: files.exists(f, hasRootField(f, "kind")).
		cel.Function("hasRootField",
			cel.Overload("has_root_field", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(filePath, fieldName ref.Val) ref.Val {
					filePathStr, ok := filePath.(types.String).Value().(string)
					if !ok {
						return types.NewErr("hasRootField: invalid file path")
					}

					fieldNameStr, ok := fieldName.(types.String).Value().(string)
					if !ok {
						return types.NewErr("hasRootField: invalid field name")
					}

					return types.Bool(hasRootField(filePathStr, fieldNameStr))
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// hasRootField scans a file line by line for `field:` at column zero.
// Unreadable files are a non-match, not an error.
func hasRootField(path, field string) bool {
	//nolint:gosec // G304: Potential file inclusion via variable.
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close() //nolint:errcheck // Read-only file.

	scanner := bufio.NewScanner(io.LimitReader(f, maxScanBytes))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, field) {
			continue
		}

		rest := line[len(field):]
		if strings.HasPrefix(rest, ":") {
			return true
		}
	}

	return false
}
