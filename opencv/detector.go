package opencv

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"

	"markerlocator/utils"
)

// DefaultDictionary is the ArUco dictionary used when none is configured.
const DefaultDictionary = "5x5_1000"

var dictionaries = map[string]gocv.ArucoDictionaryCode{
	"4x4_50":         gocv.ArucoDict4x4_50,
	"4x4_100":        gocv.ArucoDict4x4_100,
	"4x4_250":        gocv.ArucoDict4x4_250,
	"4x4_1000":       gocv.ArucoDict4x4_1000,
	"5x5_50":         gocv.ArucoDict5x5_50,
	"5x5_100":        gocv.ArucoDict5x5_100,
	"5x5_250":        gocv.ArucoDict5x5_250,
	"5x5_1000":       gocv.ArucoDict5x5_1000,
	"6x6_50":         gocv.ArucoDict6x6_50,
	"6x6_100":        gocv.ArucoDict6x6_100,
	"6x6_250":        gocv.ArucoDict6x6_250,
	"6x6_1000":       gocv.ArucoDict6x6_1000,
	"7x7_50":         gocv.ArucoDict7x7_50,
	"7x7_100":        gocv.ArucoDict7x7_100,
	"7x7_250":        gocv.ArucoDict7x7_250,
	"7x7_1000":       gocv.ArucoDict7x7_1000,
	"aruco_original": gocv.ArucoDictArucoOriginal,
}

// Dictionaries lists the accepted dictionary names.
func Dictionaries() []string {
	names := make([]string, 0, len(dictionaries))
	for name := range dictionaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDictionary checks that name is a known dictionary.
func ValidateDictionary(name string) error {
	if _, ok := dictionaries[name]; !ok {
		return fmt.Errorf("unknown aruco dictionary %q, expected one of %v", name, Dictionaries())
	}
	return nil
}

// MarkerDetector finds fiducial markers in a frame.
type MarkerDetector interface {
	Detect(frame gocv.Mat) []utils.Detection
}

// Detector is an ArUco detector over a predefined dictionary.
type Detector struct {
	dictionary string
	detector   gocv.ArucoDetector
	gray       gocv.Mat
}

func NewDetector(dictionary string) (*Detector, error) {
	if dictionary == "" {
		dictionary = DefaultDictionary
	}
	code, ok := dictionaries[dictionary]
	if !ok {
		return nil, ValidateDictionary(dictionary)
	}
	dict := gocv.GetPredefinedDictionary(code)
	params := gocv.NewArucoDetectorParameters()
	return &Detector{
		dictionary: dictionary,
		detector:   gocv.NewArucoDetectorWithParams(dict, params),
		gray:       gocv.NewMat(),
	}, nil
}

// Dictionary returns the configured dictionary name.
func (d *Detector) Dictionary() string {
	return d.dictionary
}

// Detect runs the detector on a BGR or grayscale frame.
func (d *Detector) Detect(frame gocv.Mat) []utils.Detection {
	src := frame
	if frame.Channels() == 3 {
		gocv.CvtColor(frame, &d.gray, gocv.ColorBGRToGray)
		src = d.gray
	}
	corners, ids, _ := d.detector.DetectMarkers(src)
	return toDetections(corners, ids)
}

func (d *Detector) Close() error {
	d.detector.Close()
	return d.gray.Close()
}

// toDetections keeps the detector's corner order untouched.
func toDetections(corners [][]gocv.Point2f, ids []int) []utils.Detection {
	n := len(ids)
	if len(corners) < n {
		n = len(corners)
	}
	dets := make([]utils.Detection, 0, n)
	for i := 0; i < n; i++ {
		if len(corners[i]) != 4 {
			continue
		}
		det := utils.Detection{ID: ids[i]}
		for j, c := range corners[i] {
			det.Corners[j] = r2.Point{X: float64(c.X), Y: float64(c.Y)}
		}
		dets = append(dets, det)
	}
	return dets
}
