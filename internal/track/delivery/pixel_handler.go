package delivery

import (
	"net/http"

	"pixeltrace/internal/track/usecase"

	"github.com/gin-gonic/gin"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

type PixelHandler struct {
	recorder usecase.Recorder
}

func NewPixelHandler(recorder usecase.Recorder) *PixelHandler {
	return &PixelHandler{recorder: recorder}
}

// Serve always answers with the pixel. Recording is a side channel; its
// failures never reach the mail client fetching the image.
func (h *PixelHandler) Serve(c *gin.Context) {
	trackID := c.Param("trackId")
	quoted := c.Query("q")

	h.recorder.RecordOpen(trackID, c.ClientIP(), c.Request.UserAgent(), quoted)

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/gif", pixelGIF)
}
