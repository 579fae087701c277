package handlers

import (
	"errors"
	"log"
	"net/http"

	"memories/middleware"
	"memories/services"

	"github.com/gin-gonic/gin"
)

const noPostWithID = "No post with that id"

// Machine readable error codes carried next to the message.
const (
	codeInvalidID    = "InvalidID"
	codeNotFound     = "NotFound"
	codeInvalidInput = "InvalidRequest"
	codeUpstream     = "MediaUploadFailed"
	codeStorage      = "StorageFailure"
)

// errorCode classifies err for the code field of an error body.
func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidID):
		return codeInvalidID
	case services.IsNotFound(err):
		return codeNotFound
	case services.IsValidationError(err):
		return codeInvalidInput
	case services.IsUpstreamError(err):
		return codeUpstream
	default:
		return codeStorage
	}
}

func writeError(c *gin.Context, status int, message string, err error) {
	c.JSON(status, gin.H{"message": message, "code": errorCode(err)})
}

// writeMalformedID answers a malformed id with a plain text 404.
func writeMalformedID(c *gin.Context) {
	c.String(http.StatusNotFound, noPostWithID)
}

func logError(c *gin.Context, handler string, err error) {
	log.Printf("[%s] %s: %v", handler, c.GetString(middleware.RequestIDKey), err)
}

func validationMessage(err error) string {
	var valErr *services.ValidationError
	if errors.As(err, &valErr) {
		return valErr.Field + " " + valErr.Message
	}
	return err.Error()
}
