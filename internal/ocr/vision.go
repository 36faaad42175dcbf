// Package ocr turns record label photos into text.
package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/vision/v1"
)

type TextDetector interface {
	// DetectText returns the whole-page text of the image, or "" when
	// nothing was recognised.
	DetectText(ctx context.Context, image []byte) (string, error)
}

// VisionClient uses Cloud Vision TEXT_DETECTION.
type VisionClient struct {
	service *vision.Service
}

func NewVisionClient(ctx context.Context, opts ...option.ClientOption) (*VisionClient, error) {
	service, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision service: %w", err)
	}

	return &VisionClient{
		service: service,
	}, nil
}

func (c *VisionClient) DetectText(ctx context.Context, image []byte) (string, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
				Features: []*vision.Feature{{Type: "TEXT_DETECTION"}},
			},
		},
	}

	resp, err := c.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to annotate image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}

	annotated := resp.Responses[0]
	if annotated.Error != nil {
		return "", fmt.Errorf("text detection failed: %s", annotated.Error.Message)
	}
	if len(annotated.TextAnnotations) == 0 {
		log.Debug().Int("bytes", len(image)).Msg("No text annotations returned")
		return "", nil
	}

	// the first annotation is the full page, the rest are single words
	return annotated.TextAnnotations[0].Description, nil
}
