package armpose

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadCalibration_RoundTrip(t *testing.T) {
	xf := IdentityTransform()
	xf.R.Set(0, 1, 0.5)
	xf.T.Set(0, 2, 1.25)

	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.xml")

	if err := SaveCalibration(path, xf); err != nil {
		t.Fatalf("SaveCalibration failed: %v", err)
	}

	loaded, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !almostEqual(loaded.R.At(i, j), xf.R.At(i, j)) {
				t.Errorf("R[%d][%d] = %v, want %v", i, j, loaded.R.At(i, j), xf.R.At(i, j))
			}
		}
	}
	for j := 0; j < 3; j++ {
		if !almostEqual(loaded.T.At(0, j), xf.T.At(0, j)) {
			t.Errorf("T[%d] = %v, want %v", j, loaded.T.At(0, j), xf.T.At(0, j))
		}
	}
}

func TestLoadCalibration_Missing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.xml")

	xf, err := LoadCalibration(path)
	if err != ErrCalibrationMissing {
		t.Errorf("expected ErrCalibrationMissing, got %v", err)
	}

	identity := IdentityTransform()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if xf.R.At(i, j) != identity.R.At(i, j) {
				t.Errorf("expected identity transform when file is missing")
			}
		}
	}
}

func TestLoadCalibration_MalformedXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.xml")
	writeFile(t, path, "not valid xml at all <<<")

	_, err := LoadCalibration(path)
	if err == nil {
		t.Error("expected an error for malformed XML")
	}
}

func TestLoadCalibration_WrongDimensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrongdims.xml")
	content := `<?xml version="1.0"?>
<opencv_storage>
  <calib_rot_transform type_id="opencv-matrix">
    <rows>2</rows>
    <cols>2</cols>
    <dt>f</dt>
    <data>1 0 0 1</data>
  </calib_rot_transform>
  <calib_origin type_id="opencv-matrix">
    <rows>1</rows>
    <cols>3</cols>
    <dt>f</dt>
    <data>0 0 0</data>
  </calib_origin>
</opencv_storage>`
	writeFile(t, path, content)

	_, err := LoadCalibration(path)
	if err == nil {
		t.Error("expected an error for a 2x2 rotation matrix")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test fixture: %v", err)
	}
}
