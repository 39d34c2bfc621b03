package options

import (
	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/source"
)

// SourceOptions configures how file references are fetched
type SourceOptions struct {
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3UseSSL          bool

	Fetcher source.Fetcher
}

// Complete builds the fetcher. Local paths and afs schemes are always
// served; s3:// references go to the S3 endpoint when one is set.
func (o *SourceOptions) Complete() error {
	if o.Fetcher != nil {
		return nil
	}
	router := source.NewRouter(source.NewAFS())
	if o.S3Endpoint != "" {
		s3, err := source.NewS3(source.S3Config{
			Endpoint:        o.S3Endpoint,
			AccessKeyID:     o.S3AccessKeyID,
			SecretAccessKey: o.S3SecretAccessKey,
			Region:          o.S3Region,
			UseSSL:          o.S3UseSSL,
		})
		if err != nil {
			return err
		}
		log.Info().Str("endpoint", o.S3Endpoint).Msg("fetching s3 references from endpoint")
		router.Register("s3", s3)
	}
	o.Fetcher = router
	return nil
}
