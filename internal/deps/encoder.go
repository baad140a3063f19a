package deps

import "vidmerge/internal/config"

// EncoderRequirements lists the media binaries the encoder shells out to.
func EncoderRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Encoder.FFmpegBinary,
			Description: "Required for normalize, truncate, concatenate and overlay",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Encoder.FFprobeBinary,
			Description: "Required for media inspection",
		},
	}
}
