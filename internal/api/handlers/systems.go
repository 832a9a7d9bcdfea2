package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ammonia-battery/internal/api/models"
	"ammonia-battery/internal/config"
	"ammonia-battery/internal/model"
)

var presetID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SystemHandler serves the plant presets kept as YAML files in one directory
type SystemHandler struct {
	dir    string
	logger *zap.Logger
}

// NewSystemHandler creates a handler over dir (e.g. configs/systems)
func NewSystemHandler(dir string, logger *zap.Logger) *SystemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	logger.Info("using systems directory", zap.String("dir", dir))
	return &SystemHandler{dir: dir, logger: logger.Named("systems")}
}

// Dir returns the presets directory.
func (h *SystemHandler) Dir() string { return h.dir }

// ListSystems handles GET /api/v1/systems
func (h *SystemHandler) ListSystems(c *gin.Context) {
	systems := []models.SystemInfo{}

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		h.logger.Warn("read systems directory", zap.String("dir", h.dir), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"systems": systems})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.dir, entry.Name())
		info, err := h.loadSystemInfo(path, entry.Name())
		if err != nil {
			// Skip invalid files
			h.logger.Warn("load system file", zap.String("path", path), zap.Error(err))
			continue
		}
		systems = append(systems, *info)
	}

	h.logger.Debug("listed systems", zap.Int("count", len(systems)))
	c.JSON(http.StatusOK, gin.H{"systems": systems})
}

// Load reads the preset with the given ID.
func (h *SystemHandler) Load(id string) (config.SystemConfig, error) {
	if !presetID.MatchString(id) {
		return config.SystemConfig{}, &model.ConfigurationError{Field: "preset", Reason: "invalid preset id " + id}
	}
	path := filepath.Join(h.dir, id+".yaml")
	sys, err := config.LoadSystemFile(path)
	if os.IsNotExist(err) {
		return config.SystemConfig{}, &model.ConfigurationError{Field: "preset", Reason: "unknown preset " + id}
	}
	return sys, err
}

func (h *SystemHandler) loadSystemInfo(path, filename string) (*models.SystemInfo, error) {
	sys, err := config.LoadSystemFile(path)
	if err != nil {
		return nil, err
	}

	// "reference.yaml" -> "reference"
	id := strings.TrimSuffix(filename, ".yaml")
	name := sys.Plant.Name
	if name == "" {
		name = id
	}

	return &models.SystemInfo{
		ID:   id,
		Name: name,
		File: path,
		Specs: models.SystemSpecs{
			P2AMW:         sys.Plant.P2AMW,
			StorageTonnes: sys.Plant.StorageTonnes,
			A2PMW:         sys.Plant.A2PMW,
			Technology:    sys.Plant.Technology,
			Custom:        sys.Units != nil,
		},
	}, nil
}
