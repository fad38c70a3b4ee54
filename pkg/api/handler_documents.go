package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reveralabs/revera/pkg/models"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// uploadDocumentHandler handles POST /api/documents/upload. Multipart
// form with a "file" part and an optional "chat_id" field scoping the
// document to one chat. PDFs are chunked and embedded; images are
// captioned and embedded.
func (s *Server) uploadDocumentHandler(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}

	userID := currentUserID(c)
	chatID := c.PostForm("chat_id")
	ext := strings.ToLower(filepath.Ext(header.Filename))

	isPDF := ext == ".pdf"
	if !isPDF && !imageExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unsupported file type (pdf, png, jpg, jpeg, webp)",
		})
		return
	}

	maxMB := s.research.MaxPDFSizeMB
	if !isPDF {
		maxMB = s.research.MaxImageSizeMB
	}
	if maxMB > 0 && header.Size > int64(maxMB)<<20 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large (max %dMB)", maxMB),
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	ctx := c.Request.Context()
	var doc *models.Document
	if isPDF {
		doc, err = s.deps.Ingestor.IngestPDF(ctx, data, header.Filename, userID, chatID)
	} else {
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = mime.TypeByExtension(ext)
		}
		doc, err = s.deps.Ingestor.IngestImage(ctx, data, header.Filename, mimeType, userID, chatID)
	}
	if err != nil {
		slog.Error("Document ingestion failed",
			"filename", header.Filename, "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest document"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

// listDocumentsHandler handles GET /api/documents.
func (s *Server) listDocumentsHandler(c *gin.Context) {
	list, err := s.deps.Documents.ListByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if list.Documents == nil {
		list.Documents = []models.Document{}
	}
	c.JSON(http.StatusOK, list)
}

// deleteDocumentHandler handles DELETE /api/documents/:id, removing the
// row, its vectors, and the stored object.
func (s *Server) deleteDocumentHandler(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document id is required"})
		return
	}

	if err := s.deps.Ingestor.DeleteDocument(c.Request.Context(), docID, currentUserID(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, DocumentDeletedResponse{Status: "deleted", DocumentID: docID})
}
