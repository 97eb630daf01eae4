package deps

import "testing"

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := LocalRepository{Path: "/ws/a", ManifestName: "a", ManifestVersion: "1.0.0"}
	b := LocalRepository{Path: "/ws/b", ManifestName: "b", ManifestVersion: "2.0.0"}

	fp1 := Fingerprint([]LocalRepository{a, b}, []string{"@x", "@y"})
	fp2 := Fingerprint([]LocalRepository{b, a}, []string{"@y", "@x"})
	if fp1 != fp2 {
		t.Errorf("fingerprints differ for reordered inputs: %s vs %s", fp1, fp2)
	}
}

func TestFingerprint_SensitiveToChanges(t *testing.T) {
	base := []LocalRepository{{Path: "/ws/a", ManifestName: "a", ManifestVersion: "1.0.0"}}
	fp := Fingerprint(base, []string{"@x"})

	bumped := []LocalRepository{{Path: "/ws/a", ManifestName: "a", ManifestVersion: "1.0.1"}}
	if Fingerprint(bumped, []string{"@x"}) == fp {
		t.Error("version bump did not change fingerprint")
	}
	if Fingerprint(base, []string{"@x", "@z"}) == fp {
		t.Error("added scope did not change fingerprint")
	}
	if Fingerprint(base, nil) == fp {
		t.Error("removed scope did not change fingerprint")
	}
}
