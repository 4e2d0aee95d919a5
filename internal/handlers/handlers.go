package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/docverify/internal/auth"
	"github.com/example/docverify/internal/face"
	"github.com/example/docverify/internal/imaging"
	"github.com/example/docverify/internal/usecase"
)

// MaxUploadSize bounds individual multipart file uploads.
const MaxUploadSize = 16 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg":               true,
	"image/png":                true,
	"image/gif":                true,
	"image/bmp":                true,
	"image/webp":               true,
	"application/octet-stream": true,
}

// RegisterRoutes wires the HTTP handlers to the Gin router. Health, stats and
// Prometheus metrics are public; everything touching user documents requires
// a bearer token.
func RegisterRoutes(router *gin.Engine, uc *usecase.VerificationUseCase, stats *usecase.Stats, authCfg auth.Config) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, stats.Snapshot())
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := router.Group("/", auth.Middleware(authCfg))

	protected.POST("/extract", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}

		data, ok := readImageField(c, "image")
		if !ok {
			return
		}

		requestID, result, err := uc.ExtractDocument(c.Request.Context(), userID, data)
		if err != nil {
			respondPipelineError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":       requestID,
			"fields":           result.Fields,
			"confidence":       result.Confidence,
			"method":           result.Method,
			"extraction_score": result.ExtractionScore,
			"summary":          result.Summary,
		})
	})

	protected.POST("/extract-face", func(c *gin.Context) {
		data, ok := readImageField(c, "image")
		if !ok {
			return
		}

		observation, err := uc.ExtractFace(c.Request.Context(), data, documentType(c))
		if err != nil {
			respondPipelineError(c, err)
			return
		}
		if observation == nil {
			c.JSON(http.StatusOK, gin.H{"face_found": false})
			return
		}

		encoded, err := encodePNG(observation.Image)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode face image"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"face_found": true,
			"face_image": encoded,
			"det_score":  observation.DetScore,
			"method":     observation.Method,
			"box": gin.H{
				"x":      observation.Box.Min.X,
				"y":      observation.Box.Min.Y,
				"width":  observation.Box.Dx(),
				"height": observation.Box.Dy(),
			},
		})
	})

	protected.POST("/verify-faces", func(c *gin.Context) {
		docFace, ok := readImageField(c, "document_face")
		if !ok {
			return
		}
		selfie, ok := readImageField(c, "selfie")
		if !ok {
			return
		}

		result, err := uc.VerifyFaces(c.Request.Context(), docFace, selfie)
		if err != nil {
			respondPipelineError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	})

	protected.POST("/check-liveness", func(c *gin.Context) {
		data, ok := readImageField(c, "image")
		if !ok {
			return
		}

		score, err := uc.CheckLiveness(c.Request.Context(), data)
		if err != nil {
			respondPipelineError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"liveness_score": score})
	})

	protected.POST("/verify-passport", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}

		docBytes, ok := readImageField(c, "image")
		if !ok {
			return
		}
		selfieBytes, ok := readImageField(c, "selfie")
		if !ok {
			return
		}

		requestID, decision, err := uc.VerifyDocument(c.Request.Context(), userID, docBytes, selfieBytes, documentType(c))
		if err != nil {
			respondPipelineError(c, err)
			return
		}

		response := gin.H{
			"request_id":      requestID,
			"overall_status":  decision.OverallStatus,
			"state":           decision.State,
			"ocr":             decision.OCR,
			"face":            decision.Face,
			"liveness_passed": decision.LivenessPassed,
		}
		if decision.FailureReason != "" {
			response["failure_reason"] = decision.FailureReason
		}
		if decision.DocumentFace != nil {
			if encoded, err := encodePNG(decision.DocumentFace); err == nil {
				response["document_face"] = encoded
			}
		}

		c.JSON(http.StatusOK, response)
	})

	protected.GET("/result/:id", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}

		log, err := uc.GetResult(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":       log.RequestID,
			"user_id":          log.UserID,
			"flow":             log.Flow,
			"extraction_score": log.ExtractionScore,
			"overall_status":   log.OverallStatus,
			"details":          log.Details,
			"created_at":       log.CreatedAt,
		})
	})

	protected.GET("/result/:id/duplicates", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}

		report, err := uc.GetDuplicateReport(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		duplicates := make([]gin.H, 0, len(report.Duplicates))
		for _, dup := range report.Duplicates {
			duplicates = append(duplicates, gin.H{
				"request_id":     dup.RequestID,
				"overall_status": dup.OverallStatus,
				"created_at":     dup.CreatedAt,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":      report.Request.RequestID,
			"sha1_hash":       report.Request.SHA1Hash,
			"duplicate_count": len(duplicates),
			"duplicates":      duplicates,
		})
	})

	protected.GET("/metrics-summary", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func documentType(c *gin.Context) face.DocumentType {
	if c.PostForm("document_type") == string(face.DocumentIDCard) {
		return face.DocumentIDCard
	}
	return face.DocumentPassport
}

func readImageField(c *gin.Context, field string) ([]byte, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return nil, false
	}

	if file.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": field + " exceeds upload limit"})
		return nil, false
	}
	if contentType := file.Header.Get("Content-Type"); contentType != "" {
		if !allowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))] {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported content type for " + field})
			return nil, false
		}
	}

	data, err := readUpload(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read " + field})
		return nil, false
	}
	return data, true
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

func respondPipelineError(c *gin.Context, err error) {
	var decodeErr *imaging.DecodeError
	if errors.As(err, &decodeErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": decodeErr.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
