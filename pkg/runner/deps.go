package runner

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildmatrixoor/pkg/config"
	"github.com/ethpandaops/buildmatrixoor/pkg/metrics"
	"github.com/ethpandaops/buildmatrixoor/pkg/resultstore"
	"github.com/ethpandaops/buildmatrixoor/pkg/upload"
)

// DepsFromConfig builds the collaborators enabled in cfg. Metrics are
// always collected.
func DepsFromConfig(log logrus.FieldLogger, cfg *config.Config) (Deps, error) {
	deps := Deps{Metrics: metrics.New()}

	if cfg.Report.Upload.Enabled {
		publisher, err := upload.NewS3Publisher(log, &cfg.Report.Upload)
		if err != nil {
			return Deps{}, fmt.Errorf("creating s3 publisher: %w", err)
		}

		deps.Publisher = publisher
	}

	if cfg.Report.Export.Enabled {
		deps.Store = resultstore.NewStore(log, &cfg.Report.Export.Database)
	}

	return deps, nil
}
