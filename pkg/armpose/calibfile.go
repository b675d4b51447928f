package armpose

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// fileStorageDoc mirrors the subset of cv::FileStorage's XML dialect needed
// here: a top-level opencv_storage element holding two opencv-matrix nodes,
// one 3x3 (the rotation) and one 1x3 (the origin/translation).
type fileStorageDoc struct {
	XMLName xml.Name        `xml:"opencv_storage"`
	Rot     fileStorageNode `xml:"calib_rot_transform"`
	Origin  fileStorageNode `xml:"calib_origin"`
}

type fileStorageNode struct {
	TypeID string `xml:"type_id,attr"`
	Rows   int    `xml:"rows"`
	Cols   int    `xml:"cols"`
	DT     string `xml:"dt"`
	Data   string `xml:"data"`
}

// SaveCalibration writes xf to path in cv::FileStorage's XML dialect, byte
// structurally compatible with what a C++ consumer built against OpenCV
// would read back with cv::FileStorage::operator[]. Values are written as
// float32, matching OpenCV's CV_32F matrix convention.
func SaveCalibration(path string, xf CalibrationTransform) error {
	doc := fileStorageDoc{
		Rot:    denseToNode(xf.R),
		Origin: denseToNode(xf.T),
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errorf("armpose: marshal calibration: %w", err)
	}
	out = append([]byte(xml.Header), out...)

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errorf("armpose: write calibration file %s: %w", path, err)
	}
	return nil
}

// LoadCalibration reads a calibration file previously written by
// SaveCalibration. If path does not exist, LoadCalibration returns the
// identity transform and ErrCalibrationMissing so callers can warn and fall
// back to an uncalibrated pipeline.
func LoadCalibration(path string) (CalibrationTransform, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return IdentityTransform(), ErrCalibrationMissing
	}
	if err != nil {
		return CalibrationTransform{}, errorf("armpose: read calibration file %s: %w", path, err)
	}

	var doc fileStorageDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return CalibrationTransform{}, errorf("armpose: parse calibration file %s: %w", path, err)
	}

	r, err := nodeToDense(doc.Rot, 3, 3)
	if err != nil {
		return CalibrationTransform{}, errorf("armpose: calib_rot_transform in %s: %w", path, err)
	}
	t, err := nodeToDense(doc.Origin, 1, 3)
	if err != nil {
		return CalibrationTransform{}, errorf("armpose: calib_origin in %s: %w", path, err)
	}

	return CalibrationTransform{R: r, T: t}, nil
}

// ErrCalibrationMissing is returned by LoadCalibration when the file does
// not exist yet (first run, before any calibration has been saved).
var ErrCalibrationMissing = fmt.Errorf("armpose: no calibration file found")

func denseToNode(m *mat.Dense) fileStorageNode {
	rows, cols := m.Dims()
	parts := make([]string, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			parts = append(parts, strconv.FormatFloat(m.At(i, j), 'g', 8, 32))
		}
	}
	return fileStorageNode{
		TypeID: "opencv-matrix",
		Rows:   rows,
		Cols:   cols,
		DT:     "f",
		Data:   strings.Join(parts, " "),
	}
}

func nodeToDense(n fileStorageNode, wantRows, wantCols int) (*mat.Dense, error) {
	if n.Rows != wantRows || n.Cols != wantCols {
		return nil, fmt.Errorf("expected a %dx%d matrix, got %dx%d", wantRows, wantCols, n.Rows, n.Cols)
	}
	fields := strings.Fields(n.Data)
	if len(fields) != wantRows*wantCols {
		return nil, fmt.Errorf("expected %d data values, got %d", wantRows*wantCols, len(fields))
	}

	data := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed matrix entry %q: %w", f, err)
		}
		data[i] = v
	}

	return mat.NewDense(wantRows, wantCols, data), nil
}
