// Package influx ships generation-progress metrics to InfluxDB. When the
// server is unreachable, points degrade to a gzipped line-protocol backup
// file so a run on an offline box still leaves a metrics trail.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/stexplore/strec/internal/lifecycle"
)

// BucketName is the bucket episode-generation metrics are written to.
const BucketName = "exploration_data"

// Reporter handles the InfluxDB connection and episode metric writes.
type Reporter struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	backupFile *os.File
}

// NewReporter creates a new InfluxDB reporter.
func NewReporter(log zerolog.Logger, backupPath string) *Reporter {
	return &Reporter{
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB, or opens the backup
// writer when the server cannot be reached.
func (r *Reporter) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	r.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := r.Client.Ping(context.Background())
	if err != nil || !running {
		r.IsValid = false
		if r.BackupWriter == nil {
			r.Logger.Info().Str("backupPath", r.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(r.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			r.backupFile = file
			r.BackupWriter = gzip.NewWriter(file)
		}
		r.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	r.IsValid = true
	r.Writer = r.Client.WriteAPI(viper.GetString("influx.org"), BucketName)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			r.Logger.Error().Err(writeErr).Msg("Error sending data to InfluxDB")
		}
	}(r.Writer.Errors())

	r.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

// EpisodeSaved writes one metric point per persisted episode; satisfies
// the lifecycle reporter contract.
func (r *Reporter) EpisodeSaved(_ context.Context, ep lifecycle.SavedEpisode) error {
	point := influxdb2_write.NewPoint(
		"episode_saved",
		map[string]string{
			"scene": ep.SceneID,
		},
		map[string]any{
			"episode":     ep.EpisodeID,
			"steps":       ep.Steps,
			"path_length": ep.PathLength,
		},
		time.Now(),
	)
	return r.writePoint(point)
}

func (r *Reporter) writePoint(point *influxdb2_write.Point) error {
	if r.IsValid {
		r.Writer.WritePoint(point)
		return nil
	}

	if r.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := r.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// Close flushes pending writes and releases the client or backup file.
func (r *Reporter) Close() error {
	if r.IsValid {
		r.Writer.Flush()
		r.Client.Close()
		return nil
	}
	if r.BackupWriter != nil {
		if err := r.BackupWriter.Close(); err != nil {
			return err
		}
		return r.backupFile.Close()
	}
	return nil
}
