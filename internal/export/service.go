package export

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/triagewatch/triagewatch/internal/domain"
	"github.com/triagewatch/triagewatch/internal/store"
)

// Payload is the exported dashboard state.
type Payload struct {
	ExportedAt time.Time                 `json:"exported_at"`
	Stats      domain.DashboardStats     `json:"stats"`
	Recent     []domain.AssessmentRecord `json:"recent"`
	Insights   domain.InsightsSnapshot   `json:"insights"`
	RiskChart  store.RiskDistribution    `json:"risk_chart"`
	Trends     store.TrendSeries         `json:"trends"`
}

// Service builds export artifacts from store state. The local artifact is
// always written; the upload only happens when an uploader is configured.
type Service struct {
	store    *store.Store
	dir      string
	uploader *Uploader
	log      zerolog.Logger
}

// NewService creates an export service writing artifacts under
// dataDir/exports. uploader may be nil.
func NewService(st *store.Store, dataDir string, uploader *Uploader, log zerolog.Logger) *Service {
	return &Service{
		store:    st,
		dir:      filepath.Join(dataDir, "exports"),
		uploader: uploader,
		log:      log.With().Str("component", "export").Logger(),
	}
}

// Export snapshots current store state into a local artifact and uploads
// it when configured. Returns the local artifact path.
func (s *Service) Export(ctx context.Context) (string, error) {
	payload := Payload{
		ExportedAt: time.Now().UTC(),
		Stats:      s.store.Stats(),
		Recent:     s.store.Recent(),
		Insights:   s.store.Insights(),
		RiskChart:  s.store.RiskDistribution(),
		Trends:     s.store.TrendSeries(),
	}

	path, err := BuildArchive(s.dir, payload)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("path", path).Msg("Export artifact written")

	if s.uploader != nil {
		if err := s.uploader.Upload(ctx, path); err != nil {
			// Local artifact already exists, upload failure is not fatal
			s.log.Warn().Err(err).Msg("Artifact upload failed")
		}
	}
	return path, nil
}
