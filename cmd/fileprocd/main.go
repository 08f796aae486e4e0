// fileprocd is the file-processing helper supervised by studiod. It
// accepts uploads, reports basic metadata, and exposes the health
// endpoint the orchestrator probes. Deeper media inspection (frame
// counts, codecs) happens downstream and is not this service's job.
package main

import (
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// maxUploadBytes caps a single upload; the orchestrator proxies panel
// assets, not whole renders.
const maxUploadBytes = 512 << 20

type fileMetadata struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	MimeType    string    `json:"mimeType"`
	ProcessedAt time.Time `json:"processedAt"`
}

type confirmRequest struct {
	AssetID string `json:"assetId"`
}

func main() {
	listen := flag.String("listen", ":3001", "listen address")
	flag.Parse()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("512M"))

	e.GET("/health", handleHealth)
	e.POST("/process", handleProcess)
	e.POST("/confirm", handleConfirm)

	slog.Info("fileprocd listening", "addr", *listen)
	if err := e.Start(*listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// handleHealth answers 200 only once the service accepts uploads, which
// is the contract the orchestrator's health prober relies on.
func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func handleProcess(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false, "error": "multipart field 'file' required",
		})
	}
	if fh.Size > maxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]any{
			"success": false, "error": "file too large",
		})
	}
	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false, "error": err.Error(),
		})
	}
	defer func() { _ = src.Close() }()

	mime := fh.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	meta := fileMetadata{
		Name:        fh.Filename,
		Size:        fh.Size,
		MimeType:    mime,
		ProcessedAt: time.Now().UTC(),
	}
	slog.Info("processed upload", "name", meta.Name, "size", meta.Size, "mime", meta.MimeType)
	return c.JSON(http.StatusOK, map[string]any{"success": true, "metadata": meta})
}

func handleConfirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil || req.AssetID == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false, "error": "assetId required",
		})
	}
	slog.Info("asset confirmed", "assetId", req.AssetID)
	return c.JSON(http.StatusOK, map[string]any{"success": true, "assetId": req.AssetID})
}
