package deps

import (
	"encoding/json"
	"fmt"

	"github.com/runghost/runghost/pkg/errors"
)

// ManifestFileName is the manifest recognized at the root of each clone.
const ManifestFileName = "package.json"

// defaultVersion is assumed when a manifest omits its version field.
const defaultVersion = "0.0.0"

// manifestFile mirrors the subset of the manifest format the graph needs.
// Additional fields are ignored. Dependency values are decoded loosely so a
// single malformed entry rejects that key, not the whole manifest.
type manifestFile struct {
	Name            string         `json:"name"`
	Version         string         `json:"version"`
	Dependencies    map[string]any `json:"dependencies"`
	DevDependencies map[string]any `json:"devDependencies"`
	Private         bool           `json:"private"`
}

// ParseManifest projects raw manifest bytes into a LocalRepository rooted at
// path. The input is JSON-with-comments tolerant. A missing name is fatal
// for the entry; a missing version defaults to "0.0.0". Non-string
// dependency constraints are dropped per key with a warning.
func ParseManifest(path string, data []byte) (*LocalRepository, []Warning, error) {
	var m manifestFile
	if err := json.Unmarshal(stripJSONComments(data), &m); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeManifestInvalid, err, "parsing %s", path)
	}
	if m.Name == "" {
		return nil, nil, errors.New(errors.ErrCodeManifestInvalid, "%s: manifest has no name", path)
	}
	if m.Version == "" {
		m.Version = defaultVersion
	}

	repo := &LocalRepository{
		Path:            path,
		ManifestName:    m.Name,
		ManifestVersion: m.Version,
		Private:         m.Private,
	}

	var warnings []Warning
	repo.Dependencies, warnings = stringConstraints(m.Dependencies, path, warnings)
	repo.DevDependencies, warnings = stringConstraints(m.DevDependencies, path, warnings)
	return repo, warnings, nil
}

func stringConstraints(raw map[string]any, path string, warnings []Warning) (map[string]string, []Warning) {
	if len(raw) == 0 {
		return nil, warnings
	}
	out := make(map[string]string, len(raw))
	for name, v := range raw {
		s, ok := v.(string)
		if !ok {
			warnings = append(warnings, Warning{
				Stage:   StageScan,
				Subject: path,
				Message: fmt.Sprintf("dependency %s: constraint is not a string, skipped", name),
			})
			continue
		}
		out[name] = s
	}
	if len(out) == 0 {
		return nil, warnings
	}
	return out, warnings
}

// stripJSONComments removes // and /* */ comments while leaving string
// literals untouched, so hand-edited manifests still parse.
func stripJSONComments(data []byte) []byte {
	out := make([]byte, 0, len(data))
	const (
		code = iota
		str
		lineComment
		blockComment
	)
	state := code

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch state {
		case code:
			switch {
			case c == '"':
				state = str
				out = append(out, c)
			case c == '/' && i+1 < len(data) && data[i+1] == '/':
				state = lineComment
				i++
			case c == '/' && i+1 < len(data) && data[i+1] == '*':
				state = blockComment
				i++
			default:
				out = append(out, c)
			}
		case str:
			out = append(out, c)
			if c == '\\' && i+1 < len(data) {
				out = append(out, data[i+1])
				i++
			} else if c == '"' {
				state = code
			}
		case lineComment:
			if c == '\n' {
				state = code
				out = append(out, c)
			}
		case blockComment:
			if c == '*' && i+1 < len(data) && data[i+1] == '/' {
				state = code
				i++
			}
		}
	}
	return out
}
