package middleware

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
)

const multipartMemory = 8 << 20

// Upload caps the request body at maxBytes and accepts only multipart files
// whose declared and sniffed content types are both in allowed
func Upload(maxBytes int64, allowed []string) gin.HandlerFunc {
	allow := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		allow[strings.ToLower(t)] = true
	}

	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
				c.Error(err)
			} else {
				c.Error(&domain.AppError{Kind: domain.KindValidation, Message: "Expected a multipart form upload", Err: err})
			}
			c.Abort()
			return
		}

		for _, files := range c.Request.MultipartForm.File {
			for _, fh := range files {
				if err := checkFileType(fh, allow); err != nil {
					c.Error(err)
					c.Abort()
					return
				}
			}
		}
		c.Next()
	}
}

func checkFileType(fh *multipart.FileHeader, allow map[string]bool) error {
	declared := strings.ToLower(strings.TrimSpace(strings.Split(fh.Header.Get("Content-Type"), ";")[0]))
	if !allow[declared] {
		return domain.ErrUnsupportedFileType.WithDetails(map[string]string{"file": fh.Filename, "type": declared})
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	sniffed := strings.Split(http.DetectContentType(head[:n]), ";")[0]
	if sniffed != declared {
		return domain.ErrUnsupportedFileType.WithDetails(map[string]string{"file": fh.Filename, "type": sniffed})
	}
	return nil
}
