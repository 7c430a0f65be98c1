package photo

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/luoxh/trainsys/internal/pkg/logger"
)

// ID-photo convention: 2.5cm x 3.5cm at 300 DPI, white background.
const (
	TargetWidthCM  = 2.5
	TargetHeightCM = 3.5
	DPI            = 300

	jpegQuality = 95
)

// TargetPixelBox returns the output canvas size in pixels.
func TargetPixelBox() (int, int) {
	w := int(math.Round(TargetWidthCM / 2.54 * DPI))
	h := int(math.Round(TargetHeightCM / 2.54 * DPI))
	return w, h
}

// Stage names reported in Result.
const (
	StageMatting    = "matting"
	StageFaceCenter = "face_center"
	StageContain    = "contain"
	StagePassthru   = "passthrough"
)

// StageReport records whether a pipeline stage ran and, when it did not,
// why it was skipped.
type StageReport struct {
	Stage   string `json:"stage"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// Result is the outcome of Process. JPEG always holds usable bytes; the
// stage reports make the degraded paths observable and testable.
type Result struct {
	JPEG   []byte
	Stages []StageReport
}

// Applied reports whether the named stage ran.
func (r Result) Applied(stage string) bool {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Applied
		}
	}
	return false
}

// Options configures a Processor.
type Options struct {
	// Matting performs background segmentation; nil disables the stage.
	Matting MattingClient
	// CascadePath points at a pigo face-cascade binary; empty or
	// unreadable disables face centering.
	CascadePath string
}

// Processor normalizes uploaded photos into the ID-photo convention.
// Every stage tolerates failure independently; Process never returns an
// error, only a possibly lower-quality result.
type Processor struct {
	matting    MattingClient
	classifier *pigo.Pigo
}

// NewProcessor builds a Processor, loading the face cascade when
// configured.
func NewProcessor(opts Options) *Processor {
	p := &Processor{matting: opts.Matting}

	if opts.CascadePath != "" {
		cascade, err := os.ReadFile(opts.CascadePath)
		if err != nil {
			logger.Warn().Err(err).Str("path", opts.CascadePath).Msg("Face cascade unavailable, face centering disabled")
		} else {
			classifier, err := pigo.NewPigo().Unpack(cascade)
			if err != nil {
				logger.Warn().Err(err).Str("path", opts.CascadePath).Msg("Face cascade unpack failed, face centering disabled")
			} else {
				p.classifier = classifier
			}
		}
	}

	return p
}

// Process turns raw image bytes into a standardized portrait JPEG sized to
// the target pixel box. Undecodable input is passed through untouched.
func (p *Processor) Process(ctx context.Context, raw []byte) Result {
	var result Result

	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		logger.Warn().Err(err).Msg("Photo not decodable, passing through")
		result.Stages = append(result.Stages, StageReport{Stage: StagePassthru, Applied: true, Reason: err.Error()})
		result.JPEG = raw
		return result
	}

	// Stage 1+2: background segmentation plus alpha cleanup, optional.
	composed, report := p.removeBackground(ctx, raw)
	result.Stages = append(result.Stages, report)
	if composed != nil {
		src = composed
	}

	tw, th := TargetPixelBox()

	// Stage 3: center the crop on the largest detected face.
	if face, ok := p.largestFace(src); ok {
		out := coverCrop(src, face, tw, th)
		result.Stages = append(result.Stages, StageReport{Stage: StageFaceCenter, Applied: true})
		result.JPEG = encodeJPEG(out, raw)
		return result
	}
	result.Stages = append(result.Stages, StageReport{Stage: StageFaceCenter, Applied: false, Reason: "no face detected"})

	// Stage 4: contain within the target box on a white canvas.
	out := containOnWhite(src, tw, th)
	result.Stages = append(result.Stages, StageReport{Stage: StageContain, Applied: true})
	result.JPEG = encodeJPEG(out, raw)
	return result
}

// removeBackground runs the matting service and composites the foreground
// over white. Returns nil when the stage was skipped or failed.
func (p *Processor) removeBackground(ctx context.Context, raw []byte) (image.Image, StageReport) {
	if p.matting == nil {
		return nil, StageReport{Stage: StageMatting, Applied: false, Reason: "matting disabled"}
	}

	cutout, err := p.matting.RemoveBackground(ctx, raw)
	if err != nil {
		logger.Warn().Err(err).Msg("Background matting failed, keeping original")
		return nil, StageReport{Stage: StageMatting, Applied: false, Reason: err.Error()}
	}

	nrgba := imaging.Clone(cutout)
	dilateAlpha3x3(nrgba)
	return compositeOnWhite(nrgba), StageReport{Stage: StageMatting, Applied: true}
}

// largestFace detects faces and returns the biggest one's bounds.
func (p *Processor) largestFace(img image.Image) (image.Rectangle, bool) {
	if p.classifier == nil {
		return image.Rectangle{}, false
	}

	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows < 24 || cols < 24 {
		return image.Rectangle{}, false
	}

	params := pigo.CascadeParams{
		MinSize:     int(float64(min(rows, cols)) * 0.1),
		MaxSize:     max(rows, cols),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: grayscalePixels(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, 0.2)

	best := image.Rectangle{}
	found := false
	for _, det := range dets {
		if det.Q < 5.0 {
			continue
		}
		r := image.Rect(det.Col-det.Scale/2, det.Row-det.Scale/2, det.Col+det.Scale/2, det.Row+det.Scale/2)
		if !found || r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
			found = true
		}
	}
	return best, found
}

// coverCrop scales img so the target box is fully covered, then crops a
// box whose center lands on the face center, clamped to the image bounds.
func coverCrop(img image.Image, face image.Rectangle, tw, th int) image.Image {
	bounds := img.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()

	scale := float64(tw) / float64(sw)
	if s := float64(th) / float64(sh); s > scale {
		scale = s
	}

	nw := max(tw, int(float64(sw)*scale+0.5))
	nh := max(th, int(float64(sh)*scale+0.5))
	resized := imaging.Resize(img, nw, nh, imaging.Lanczos)

	cx := int(float64(face.Min.X+face.Max.X) / 2 * scale)
	cy := int(float64(face.Min.Y+face.Max.Y) / 2 * scale)

	left := clamp(cx-tw/2, 0, nw-tw)
	top := clamp(cy-th/2, 0, nh-th)

	return imaging.Crop(resized, image.Rect(left, top, left+tw, top+th))
}

// containOnWhite fits img inside the target box preserving aspect ratio
// and centers it on a white canvas of exactly that size.
func containOnWhite(img image.Image, tw, th int) image.Image {
	fitted := imaging.Fit(img, tw, th, imaging.Lanczos)
	canvas := imaging.New(tw, th, color.White)
	return imaging.PasteCenter(canvas, fitted)
}

// encodeJPEG renders img as JPEG; fallback bytes are returned when
// encoding fails so the pipeline never surfaces an error.
func encodeJPEG(img image.Image, fallback []byte) []byte {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		logger.Error().Err(err).Msg("JPEG encoding failed, returning original bytes")
		return fallback
	}
	return buf.Bytes()
}

// dilateAlpha3x3 expands the alpha mask by one pixel in every direction so
// thin clothing edges survive compositing.
func dilateAlpha3x3(img *image.NRGBA) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	orig := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			orig[y*w+x] = img.Pix[y*img.Stride+x*4+3]
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			maxA := orig[y*w+x]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					if a := orig[ny*w+nx]; a > maxA {
						maxA = a
					}
				}
			}
			img.Pix[y*img.Stride+x*4+3] = maxA
		}
	}
}

// compositeOnWhite flattens an image with alpha onto an opaque white
// background.
func compositeOnWhite(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	out := imaging.New(bounds.Dx(), bounds.Dy(), color.White)

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			i := y*img.Stride + x*4
			a := uint32(img.Pix[i+3])
			o := y*out.Stride + x*4
			for c := 0; c < 3; c++ {
				fg := uint32(img.Pix[i+c])
				out.Pix[o+c] = uint8((fg*a + 255*(255-a)) / 255)
			}
			out.Pix[o+3] = 255
		}
	}
	return out
}

// grayscalePixels flattens img into the row-major gray buffer pigo wants.
func grayscalePixels(img image.Image) []uint8 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]uint8, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			pixels[y*w+x] = uint8((299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000)
		}
	}
	return pixels
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
