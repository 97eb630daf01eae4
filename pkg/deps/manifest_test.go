package deps

import (
	"testing"

	"github.com/runghost/runghost/pkg/errors"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`{
		"name": "@acme/app",
		"version": "1.4.2",
		"private": true,
		"dependencies": {"@acme/lib": "^2.0.0", "lodash": "~4.17.0"},
		"devDependencies": {"typescript": "^5.0.0"}
	}`)

	repo, warnings, err := ParseManifest("/ws/app", data)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if repo.ManifestName != "@acme/app" || repo.ManifestVersion != "1.4.2" {
		t.Errorf("repo = %+v", repo)
	}
	if !repo.Private {
		t.Error("private flag lost")
	}
	if repo.Dependencies["@acme/lib"] != "^2.0.0" {
		t.Errorf("dependencies = %v", repo.Dependencies)
	}
	if repo.DevDependencies["typescript"] != "^5.0.0" {
		t.Errorf("devDependencies = %v", repo.DevDependencies)
	}
}

func TestParseManifest_MissingName(t *testing.T) {
	_, _, err := ParseManifest("/ws/x", []byte(`{"version": "1.0.0"}`))
	if !errors.Is(err, errors.ErrCodeManifestInvalid) {
		t.Errorf("error = %v, want MANIFEST_INVALID", err)
	}
}

func TestParseManifest_DefaultVersion(t *testing.T) {
	repo, _, err := ParseManifest("/ws/x", []byte(`{"name": "x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if repo.ManifestVersion != "0.0.0" {
		t.Errorf("version = %q, want 0.0.0", repo.ManifestVersion)
	}
}

func TestParseManifest_NonStringConstraintSkipped(t *testing.T) {
	data := []byte(`{"name": "x", "dependencies": {"good": "^1.0.0", "bad": {"version": "2"}}}`)

	repo, warnings, err := ParseManifest("/ws/x", data)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.Dependencies["bad"]; ok {
		t.Error("non-string constraint kept")
	}
	if repo.Dependencies["good"] != "^1.0.0" {
		t.Errorf("dependencies = %v", repo.Dependencies)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one", warnings)
	}
}

func TestParseManifest_ToleratesComments(t *testing.T) {
	data := []byte(`{
		// the main application
		"name": "x", /* version pinned below */
		"version": "1.0.0",
		"description": "slashes // inside strings survive"
	}`)

	repo, _, err := ParseManifest("/ws/x", data)
	if err != nil {
		t.Fatalf("ParseManifest() failed on commented manifest: %v", err)
	}
	if repo.ManifestName != "x" || repo.ManifestVersion != "1.0.0" {
		t.Errorf("repo = %+v", repo)
	}
}

func TestStripJSONComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line comment", "a // gone\nb", "a \nb"},
		{"block comment", "a /* gone */ b", "a  b"},
		{"slashes in string", `"http://x" // gone`, `"http://x" `},
		{"escaped quote", `"a\"//b"`, `"a\"//b"`},
		{"no comments", `{"a": 1}`, `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(stripJSONComments([]byte(tt.in))); got != tt.want {
				t.Errorf("stripJSONComments(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
