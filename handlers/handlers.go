package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"shop-analyzer/audit"
	"shop-analyzer/database"
	"shop-analyzer/metrics"
	"shop-analyzer/models"
	"shop-analyzer/service"
)

const serviceName = "shop-analyzer"

// SubmissionPublisher announces stored submissions to interested consumers.
// Satisfied by rabbitmq.Publisher.
type SubmissionPublisher interface {
	Publish(message interface{}) error
}

// Handlers represents the HTTP handlers
type Handlers struct {
	analyzer  *service.Analyzer
	db        *database.Database
	audit     *audit.Writer
	publisher SubmissionPublisher // nil when event publishing is disabled
}

// NewHandlers creates new HTTP handlers
func NewHandlers(analyzer *service.Analyzer, db *database.Database, auditWriter *audit.Writer, publisher SubmissionPublisher) *Handlers {
	return &Handlers{
		analyzer:  analyzer,
		db:        db,
		audit:     auditWriter,
		publisher: publisher,
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(service.TimestampLayout),
		"service":   serviceName,
	})
}

// AnalyzeShop accepts a multipart image and returns its analysis document.
// Inference and decode failures still answer 200: a "could not analyze"
// determination is a valid analysis result, not an HTTP error.
func (h *Handlers) AnalyzeShop(c *gin.Context) {
	imageData, ok := h.readImage(c)
	if !ok {
		return
	}

	result := h.analyzer.Analyze(c.Request.Context(), imageData)
	c.JSON(http.StatusOK, result)
}

// SubmitShop accepts a multipart image plus caller-supplied shop_data JSON,
// writes the audit copy and inserts the submission. The audit write and the
// insert are independent side effects; a failed audit write is logged and
// the insert still proceeds.
func (h *Handlers) SubmitShop(c *gin.Context) {
	imageData, ok := h.readImage(c)
	if !ok {
		return
	}

	shopDataStr := c.PostForm("shop_data")
	if shopDataStr == "" {
		log.Warn("No shop_data in request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "No shop_data provided",
			"status": "error",
		})
		return
	}

	var shopData models.ShopData
	if err := json.Unmarshal([]byte(shopDataStr), &shopData); err != nil {
		log.Warnf("Malformed shop_data: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid shop_data JSON",
			"status": "error",
		})
		return
	}

	capturedAt := time.Now()
	auditPath, err := h.audit.SaveImage(imageData, capturedAt)
	if err != nil {
		log.Errorf("Failed to write audit image: %v", err)
	}

	shopID, err := h.db.SaveShop(shopData.Location, shopData.Inference, imageData)
	if err != nil {
		log.Errorf("Failed to save shop submission: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Internal server error",
			"status": "error",
		})
		return
	}
	metrics.SubmissionsTotal.Inc()
	log.Infof("Stored shop submission %d (%d bytes)", shopID, len(imageData))

	if h.publisher != nil {
		event := models.SubmissionEvent{
			ShopID:    shopID,
			AuditPath: auditPath,
			ImageSize: len(imageData),
			CreatedAt: capturedAt,
		}
		if err := h.publisher.Publish(event); err != nil {
			log.Errorf("Failed to publish submission event for shop %d: %v", shopID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"shop_id": shopID,
		"message": "Shop submission recorded",
	})
}

// GetShop returns one persisted submission. Image bytes are omitted unless
// include_image=true is passed.
func (h *Handlers) GetShop(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid shop id",
			"status": "error",
		})
		return
	}

	shop, err := h.db.GetShop(id)
	if err != nil {
		log.Errorf("Failed to read shop %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Internal server error",
			"status": "error",
		})
		return
	}
	if shop == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "Shop not found",
			"status": "error",
		})
		return
	}

	if c.Query("include_image") != "true" {
		shop.Image = nil
	}
	c.JSON(http.StatusOK, shop)
}

// readImage extracts the image form field. On any client error it writes the
// 400 response and returns ok=false.
func (h *Handlers) readImage(c *gin.Context) ([]byte, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		log.Warn("No image file in request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "No image provided",
			"status": "error",
		})
		return nil, false
	}

	imageData, err := readFormFile(file)
	if err != nil {
		log.Errorf("Failed to read uploaded image: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Could not read image data",
			"status": "error",
		})
		return nil, false
	}

	if len(imageData) == 0 {
		log.Warn("Empty image data received")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Empty image data",
			"status": "error",
		})
		return nil, false
	}

	log.Infof("Processing image: %s (%d bytes)", file.Filename, len(imageData))
	return imageData, true
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
