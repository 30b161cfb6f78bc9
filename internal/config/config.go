// Package config reads service settings from ATLAS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"expression_atlas/internal/blob"
	"expression_atlas/internal/dataset"
)

type Config struct {
	HTTPAddr         string
	ExpressionFile   string
	GenebodyFile     string
	TSSFile          string
	GeneCatalog      string
	DefaultGene      string
	FeatureCacheSize int
	LogLevel         string
	Export           blob.Config
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads settings through getenv, applying defaults for unset
// variables.
func LoadFrom(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		HTTPAddr:       get("ATLAS_HTTP_ADDR", ":8080"),
		ExpressionFile: get("ATLAS_EXPRESSION_FILE", "ALL_RPKM_LABELED_SUBSET.csv"),
		GenebodyFile:   get("ATLAS_GENEBODY_FILE", ""),
		TSSFile:        get("ATLAS_TSS_FILE", ""),
		GeneCatalog:    get("ATLAS_GENE_CATALOG", ""),
		DefaultGene:    get("ATLAS_DEFAULT_GENE", "Shh"),
		LogLevel:       get("ATLAS_LOG_LEVEL", "info"),
		Export: blob.Config{
			Driver: blob.Driver(strings.ToLower(get("ATLAS_EXPORT_DRIVER", string(blob.DriverFilesystem)))),
			FSRoot: get("ATLAS_EXPORT_FS_ROOT", "./exports"),
			S3: blob.S3Config{
				Bucket:          get("ATLAS_EXPORT_S3_BUCKET", ""),
				Region:          get("ATLAS_EXPORT_S3_REGION", "us-east-1"),
				Endpoint:        get("ATLAS_EXPORT_S3_ENDPOINT", ""),
				AccessKeyID:     get("ATLAS_EXPORT_S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: get("ATLAS_EXPORT_S3_SECRET_ACCESS_KEY", ""),
			},
		},
	}

	var errs []error
	size, err := strconv.Atoi(get("ATLAS_FEATURE_CACHE_SIZE", "256"))
	if err != nil || size <= 0 {
		errs = append(errs, fmt.Errorf("ATLAS_FEATURE_CACHE_SIZE must be a positive integer"))
	}
	cfg.FeatureCacheSize = size

	ps, err := strconv.ParseBool(get("ATLAS_EXPORT_S3_PATH_STYLE", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("ATLAS_EXPORT_S3_PATH_STYLE: %w", err))
	}
	cfg.Export.S3.PathStyle = ps

	switch cfg.Export.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if cfg.Export.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("ATLAS_EXPORT_S3_BUCKET is required for the s3 export driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("ATLAS_EXPORT_DRIVER %q is not one of fs, memory, s3", cfg.Export.Driver))
	}
	if cfg.ExpressionFile == "" {
		errs = append(errs, fmt.Errorf("ATLAS_EXPRESSION_FILE is required"))
	}
	return cfg, errors.Join(errs...)
}

// Sources lists the configured tables. Methylation sources are only present
// when their file is set.
func (c Config) Sources() []dataset.Source {
	sources := []dataset.Source{{Name: "expression", Path: c.ExpressionFile, Kind: dataset.KindExpression, Unit: "RPKM"}}
	if c.GenebodyFile != "" {
		sources = append(sources, dataset.Source{Name: "genebody", Path: c.GenebodyFile, Kind: dataset.KindMethylation, Unit: "% methylation"})
	}
	if c.TSSFile != "" {
		sources = append(sources, dataset.Source{Name: "tss", Path: c.TSSFile, Kind: dataset.KindMethylation, Unit: "% methylation"})
	}
	for i := range sources {
		sources[i].Format = dataset.FormatOf(sources[i].Path)
	}
	return sources
}
