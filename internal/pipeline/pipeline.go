package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nanobanana/supermarket/internal/gateway"
	"github.com/nanobanana/supermarket/internal/imaging"
	"github.com/nanobanana/supermarket/internal/models"
)

var (
	ErrMissingPrimary   = errors.New("an image must be uploaded")
	ErrMissingSecondary = errors.New("this transformation needs both images")
	ErrMissingPrompt    = errors.New("a prompt describing the change is required")
	ErrStageOneNoImage  = errors.New("the line art stage did not return an image")
)

// Gateway is the single-call edit contract the pipeline orchestrates.
type Gateway interface {
	Edit(ctx context.Context, req gateway.EditRequest) (*models.GeneratedContent, error)
}

// Fetcher materializes an image URL (data or http) into bytes.
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, string, error)
}

// Request is one user-initiated generation.
type Request struct {
	Transformation models.Transformation
	CustomPrompt   string
	PrimaryImage   string // data URL
	MaskImage      string // data URL, optional
	SecondaryImage string // data URL, optional
}

// Service runs transformations against the gateway: one call for single-step
// descriptors, two sequential calls for two-step ones. No charge happens
// here; metering is the caller's boundary after a complete success.
type Service struct {
	log       *slog.Logger
	gw        Gateway
	fetcher   Fetcher
	watermark string
}

func NewService(gw Gateway, fetcher Fetcher, watermarkText string, log *slog.Logger) *Service {
	return &Service{
		log:       log,
		gw:        gw,
		fetcher:   fetcher,
		watermark: watermarkText,
	}
}

// Generate validates the request, branches on the descriptor, and returns the
// final (watermarked) content. Any stage failure surfaces as a single error
// with nothing persisted and nothing charged.
func (s *Service) Generate(ctx context.Context, req Request) (*models.GeneratedContent, error) {
	if req.PrimaryImage == "" {
		return nil, ErrMissingPrimary
	}
	if req.Transformation.IsMultiImage && req.SecondaryImage == "" {
		return nil, ErrMissingSecondary
	}

	prompt := req.Transformation.Prompt
	if prompt == models.CustomPrompt {
		prompt = strings.TrimSpace(req.CustomPrompt)
	}
	if prompt == "" {
		return nil, ErrMissingPrompt
	}

	primaryMime, primaryBase64, err := imaging.SplitDataURL(req.PrimaryImage)
	if err != nil {
		return nil, fmt.Errorf("primary image: %w", err)
	}

	var maskBase64 string
	if req.MaskImage != "" {
		if _, maskBase64, err = imaging.SplitDataURL(req.MaskImage); err != nil {
			return nil, fmt.Errorf("mask image: %w", err)
		}
	}

	if req.Transformation.IsTwoStep {
		return s.generateTwoStep(ctx, req, prompt, primaryMime, primaryBase64)
	}
	return s.generateSingle(ctx, req, prompt, primaryMime, primaryBase64, maskBase64)
}

func (s *Service) generateSingle(ctx context.Context, req Request, prompt, primaryMime, primaryBase64, maskBase64 string) (*models.GeneratedContent, error) {
	var secondary *gateway.ImagePayload
	if req.Transformation.IsMultiImage {
		mime, payload, err := imaging.SplitDataURL(req.SecondaryImage)
		if err != nil {
			return nil, fmt.Errorf("secondary image: %w", err)
		}
		secondary = &gateway.ImagePayload{Base64: payload, MimeType: mime}
	}

	result, err := s.gw.Edit(ctx, gateway.EditRequest{
		ImageBase64: primaryBase64,
		MimeType:    primaryMime,
		Prompt:      prompt,
		MaskBase64:  maskBase64,
		Secondary:   secondary,
	})
	if err != nil {
		return nil, err
	}

	if err := s.stampResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) generateTwoStep(ctx context.Context, req Request, prompt, primaryMime, primaryBase64 string) (*models.GeneratedContent, error) {
	s.log.Info("two-step generation: stage one", "transformation", req.Transformation.Title)

	// Stage one transforms only the primary image: no mask, no secondary.
	stageOne, err := s.gw.Edit(ctx, gateway.EditRequest{
		ImageBase64: primaryBase64,
		MimeType:    primaryMime,
		Prompt:      prompt,
	})
	if err != nil {
		return nil, err
	}
	if stageOne.ImageURL == "" {
		return nil, ErrStageOneNoImage
	}

	stageOneBytes, stageOneMime, err := s.fetcher.Fetch(ctx, stageOne.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("materialize stage-one image: %w", err)
	}

	var secondary *gateway.ImagePayload
	if req.Transformation.IsMultiImage {
		secondary, err = s.resizedSecondary(req.PrimaryImage, req.SecondaryImage)
		if err != nil {
			return nil, err
		}
	}

	s.log.Info("two-step generation: stage two", "transformation", req.Transformation.Title)

	stageTwo, err := s.gw.Edit(ctx, gateway.EditRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(stageOneBytes),
		MimeType:    stageOneMime,
		Prompt:      req.Transformation.StepTwoPrompt,
		Secondary:   secondary,
	})
	if err != nil {
		return nil, err
	}

	if err := s.stampResult(ctx, stageTwo); err != nil {
		return nil, err
	}
	// The intermediate artifact is retained for the caller.
	stageTwo.SecondaryImageURL = stageOne.ImageURL
	return stageTwo, nil
}

// resizedSecondary crops and scales the secondary reference to the primary
// image's aspect ratio and dimensions before the coloring call.
func (s *Service) resizedSecondary(primaryDataURL, secondaryDataURL string) (*gateway.ImagePayload, error) {
	_, primaryBytes, err := imaging.DecodeDataURL(primaryDataURL)
	if err != nil {
		return nil, fmt.Errorf("primary image: %w", err)
	}
	primaryImg, err := imaging.Decode(primaryBytes)
	if err != nil {
		return nil, fmt.Errorf("primary image: %w", err)
	}

	_, secondaryBytes, err := imaging.DecodeDataURL(secondaryDataURL)
	if err != nil {
		return nil, fmt.Errorf("secondary image: %w", err)
	}

	bounds := primaryImg.Bounds()
	resized, err := imaging.ResizeToMatch(secondaryBytes, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, fmt.Errorf("resize secondary image: %w", err)
	}

	return &gateway.ImagePayload{
		Base64:   base64.StdEncoding.EncodeToString(resized),
		MimeType: "image/png",
	}, nil
}

// stampResult watermarks the final image in place, leaving caption-only
// results untouched.
func (s *Service) stampResult(ctx context.Context, result *models.GeneratedContent) error {
	if result.ImageURL == "" || s.watermark == "" {
		return nil
	}
	data, _, err := s.fetcher.Fetch(ctx, result.ImageURL)
	if err != nil {
		return fmt.Errorf("materialize result image: %w", err)
	}
	stamped, err := imaging.Stamp(data, s.watermark)
	if err != nil {
		return fmt.Errorf("watermark result image: %w", err)
	}
	result.ImageURL = imaging.EncodeDataURL("image/png", stamped)
	return nil
}
