package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nanobanana/supermarket/internal/imaging"
	"github.com/nanobanana/supermarket/internal/models"
	"github.com/nanobanana/supermarket/internal/pipeline"
	"github.com/nanobanana/supermarket/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type credentialsRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.accounts.Register(r.Context(), req.Phone, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrInvalidPhone):
		s.writeError(w, http.StatusBadRequest, "invalid phone number")
		return
	case errors.Is(err, store.ErrPasswordTooShort):
		s.writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	case errors.Is(err, store.ErrDuplicate):
		s.writeError(w, http.StatusBadRequest, "phone number already registered")
		return
	default:
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    account.Summary(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.accounts.Authenticate(r.Context(), req.Phone, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusUnauthorized, "user does not exist")
		return
	case errors.Is(err, store.ErrWrongPassword):
		s.writeError(w, http.StatusUnauthorized, "incorrect password")
		return
	case errors.Is(err, store.ErrInvalidPhone):
		s.writeError(w, http.StatusBadRequest, "invalid phone number")
		return
	default:
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    account.Summary(),
	})
}

func (s *Server) handleTransformations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"transformations": pipeline.Catalog,
	})
}

type generateRequest struct {
	Phone          string `json:"phone"`
	Transformation string `json:"transformation"`
	CustomPrompt   string `json:"customPrompt"`
	PrimaryImage   string `json:"primaryImage"`
	MaskImage      string `json:"maskImage"`
	SecondaryImage string `json:"secondaryImage"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.accounts.Get(r.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPhone) {
			s.writeError(w, http.StatusUnauthorized, "user does not exist")
			return
		}
		s.internalError(w, err)
		return
	}
	if account.RemainingUses <= 0 {
		s.writeError(w, http.StatusForbidden, "no generations remaining")
		return
	}

	trans, ok := pipeline.Find(req.Transformation)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown transformation")
		return
	}

	result, err := s.pipeline.Generate(r.Context(), pipeline.Request{
		Transformation: trans,
		CustomPrompt:   req.CustomPrompt,
		PrimaryImage:   req.PrimaryImage,
		MaskImage:      req.MaskImage,
		SecondaryImage: req.SecondaryImage,
	})
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrMissingPrimary),
			errors.Is(err, pipeline.ErrMissingSecondary),
			errors.Is(err, pipeline.ErrMissingPrompt):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			// The gateway already distills the upstream body into one
			// descriptive message; it is the failure reason shown to the user.
			s.log.Error("generation failed", "phone", req.Phone, "transformation", trans.Title, "err", err)
			s.writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	// A caption-only reply is not a generated image; only an image result
	// costs a credit and lands on disk. The counters are re-read so the
	// caller's session cache reflects any charge that landed meanwhile.
	if result.ImageURL == "" {
		account, err = s.accounts.Get(r.Context(), req.Phone)
		if err != nil {
			s.internalError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"result":          result,
			"remainingUses":   account.RemainingUses,
			"imagesGenerated": account.ImagesGenerated,
		})
		return
	}

	usage, err := s.accounts.ChargeGeneration(r.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, store.ErrExhausted) {
			s.writeError(w, http.StatusForbidden, "no generations remaining")
			return
		}
		s.internalError(w, err)
		return
	}

	filename, err := s.images.Save(r.Context(), req.Phone, trans.Step(), trans.Title, result.ImageURL, "")
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"result":          result,
		"filename":        filename,
		"remainingUses":   usage.RemainingUses,
		"imagesGenerated": usage.ImagesGenerated,
	})
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

func (s *Server) handleUserImages(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := s.accounts.Get(r.Context(), req.Phone); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPhone) {
			s.writeError(w, http.StatusUnauthorized, "user does not exist")
			return
		}
		s.internalError(w, err)
		return
	}

	images, err := s.images.ListForPhone(req.Phone)
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"images":  images,
	})
}

type saveImageRequest struct {
	Phone               string `json:"phone"`
	ImageURL            string `json:"imageUrl"`
	Filename            string `json:"filename"`
	TransformationTitle string `json:"transformationTitle"`
	Step                string `json:"step"`
}

func (s *Server) handleSaveImage(w http.ResponseWriter, r *http.Request) {
	var req saveImageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ImageURL == "" {
		s.writeError(w, http.StatusBadRequest, "imageUrl is required")
		return
	}

	if _, err := s.accounts.Get(r.Context(), req.Phone); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPhone) {
			s.writeError(w, http.StatusUnauthorized, "user does not exist")
			return
		}
		s.internalError(w, err)
		return
	}

	usage, err := s.accounts.ChargeGeneration(r.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, store.ErrExhausted) {
			s.writeError(w, http.StatusForbidden, "no generations remaining")
			return
		}
		s.internalError(w, err)
		return
	}

	step := models.Step(req.Step)
	if step != models.StepTwoStep {
		step = models.StepSingle
	}

	saved, err := s.images.Save(r.Context(), req.Phone, step, req.TransformationTitle, req.ImageURL, req.Filename)
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"filename":        saved,
		"remainingUses":   usage.RemainingUses,
		"imagesGenerated": usage.ImagesGenerated,
	})
}

func (s *Server) serveImage(w http.ResponseWriter, r *http.Request, download bool) {
	filename := chi.URLParam(r, "filename")
	path, err := s.images.Path(filename)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "image not found")
		return
	}

	if download {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	} else {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}

	dot := strings.LastIndex(filename, ".")
	if dot >= 0 {
		w.Header().Set("Content-Type", imaging.MimeForExtension(filename[dot:]))
	}

	http.ServeFile(w, r, path)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	s.serveImage(w, r, false)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveImage(w, r, true)
}
