package service

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/disintegration/imaging"

	"shop-analyzer/llm"
	"shop-analyzer/metrics"
	"shop-analyzer/parser"
)

// TimestampLayout is the timestamp format used in analysis metadata and the
// health endpoint.
const TimestampLayout = "2006-01-02 15:04:05"

// Outcome is the result of one inference round trip: either a parsed payload
// or a failure reason. Every call path into the inference provider routes
// through an Outcome so that failures cannot escape as errors or panics.
type Outcome struct {
	payload any
	failure string
}

func Success(payload any) Outcome { return Outcome{payload: payload} }

func Failure(reason string) Outcome { return Outcome{failure: reason} }

func (o Outcome) Failed() bool { return o.failure != "" }

func (o Outcome) Reason() string { return o.failure }

// Document renders the uniform response shape. A success passes the parsed
// payload through verbatim; a failure becomes the structured invalid
// document so downstream consumers always get a parseable body.
func (o Outcome) Document(now time.Time) any {
	if !o.Failed() {
		return o.payload
	}
	return map[string]any{
		"is_valid": false,
		"error":    o.failure,
		"analysis_metadata": map[string]any{
			"analysis_timestamp": now.Format(TimestampLayout),
			"is_shop":            false,
			"languages_detected": []string{},
		},
	}
}

// Analyzer converts an image into an analysis document via the configured
// inference provider. It holds no per-request state.
type Analyzer struct {
	client       llm.Client
	timeout      time.Duration
	maxDimension int
}

func NewAnalyzer(client llm.Client, timeout time.Duration, maxDimension int) *Analyzer {
	return &Analyzer{
		client:       client,
		timeout:      timeout,
		maxDimension: maxDimension,
	}
}

// Analyze runs one analysis round trip and always returns a well-formed
// document: the parsed provider output on success, the structured invalid
// shape on any failure. It never returns an error.
func (a *Analyzer) Analyze(ctx context.Context, imageData []byte) any {
	start := time.Now()
	outcome, stage := a.analyze(ctx, imageData)

	result := "success"
	if outcome.Failed() {
		result = "failure"
		metrics.InferenceFailuresTotal.WithLabelValues(stage).Inc()
		log.Warnf("Analysis failed at %s stage: %s", stage, outcome.Reason())
	}
	metrics.AnalysisDurationSeconds.WithLabelValues(result).Observe(time.Since(start).Seconds())
	log.Infof("Analysis completed in %.2f seconds (%s)", time.Since(start).Seconds(), result)

	return outcome.Document(time.Now())
}

// analyze is the single conversion boundary around the inference provider.
// The returned stage labels where a failure happened: decode, inference or parse.
func (a *Analyzer) analyze(ctx context.Context, imageData []byte) (Outcome, string) {
	prepared, mimeType, err := prepareImage(imageData, a.maxDimension)
	if err != nil {
		return Failure("image could not be decoded: " + err.Error()), "decode"
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.AnalyzeShopImage(ctx, prepared, mimeType)
	if err != nil {
		return Failure(a.client.SourceName() + " analysis failed: " + err.Error()), "inference"
	}

	doc, err := parser.Parse(raw)
	if err != nil {
		return Failure(err.Error()), "parse"
	}
	return Success(doc), ""
}

// prepareImage verifies the bytes decode as an image and downscales anything
// larger than maxDimension before it goes over the wire. Images already
// within bounds are passed through untouched.
func prepareImage(data []byte, maxDimension int) ([]byte, string, error) {
	mimeType := http.DetectContentType(data)

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}

	bounds := img.Bounds()
	if maxDimension > 0 && (bounds.Dx() > maxDimension || bounds.Dy() > maxDimension) {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			return nil, "", err
		}
		log.Infof("Downscaled image from %dx%d to fit %dpx", bounds.Dx(), bounds.Dy(), maxDimension)
		return buf.Bytes(), "image/jpeg", nil
	}

	return data, mimeType, nil
}
